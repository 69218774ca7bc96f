package telemetry

import (
	"net/http/httptest"
	"strings"
	"testing"

	"mina-core/internal/action"
	"mina-core/internal/snarkverify"
)

func TestRecordAppliedIncrementsCounter(t *testing.T) {
	c := New()
	c.RecordApplied(action.KindConsensus)
	c.RecordApplied(action.KindConsensus)

	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(w.Body.String(), "mina_actions_applied_total") {
		t.Fatalf("expected counter in output, got %s", w.Body.String())
	}
}

func TestRecordVerifyErrorLabelsByKind(t *testing.T) {
	c := New()
	c.RecordVerifyError(snarkverify.ErrVerificationFailed)

	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(w.Body.String(), `kind="verification_failed"`) {
		t.Fatalf("expected labeled verify error metric, got %s", w.Body.String())
	}
}

func TestGaugeSetters(t *testing.T) {
	c := New()
	c.SetPeerCount(3)
	c.SetSyncPhase(5)
	c.SetBestChainLen(100)
	c.SetSnarkPoolSize(7)
	c.RecordRejected()

	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	body := w.Body.String()
	for _, want := range []string{"mina_peer_count 3", "mina_sync_phase 5", "mina_best_chain_length 100", "mina_snark_pool_size 7", "mina_actions_rejected_total 1"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in output, got %s", want, body)
		}
	}
}
