package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sealedreview/reviewpipeline/pkg/attestation"
	"github.com/sealedreview/reviewpipeline/pkg/decision"
	"github.com/sealedreview/reviewpipeline/pkg/fault"
	"github.com/sealedreview/reviewpipeline/pkg/idempotency"
	"github.com/sealedreview/reviewpipeline/pkg/merkleindex"
	"github.com/sealedreview/reviewpipeline/pkg/metrics"
	"github.com/sealedreview/reviewpipeline/pkg/orchestrator"
	"github.com/sealedreview/reviewpipeline/pkg/permit"
	"github.com/sealedreview/reviewpipeline/pkg/precheck"
	"github.com/sealedreview/reviewpipeline/pkg/review"
	"github.com/sealedreview/reviewpipeline/pkg/webhook"
)

// --- fakes, mirroring pkg/orchestrator's own test fixtures -------------

type fakeDiffExtractor struct{ files []precheck.DiffFile }

func (f fakeDiffExtractor) ExtractDiff(_ context.Context, _ webhook.EventContext) ([]precheck.DiffFile, error) {
	return f.files, nil
}

type passthroughFilter struct{}

func (passthroughFilter) FilterFiles(files []precheck.DiffFile) []precheck.DiffFile { return files }

type fakeClassifier struct{ bundle precheck.Bundle }

func (f fakeClassifier) Classify(_ []precheck.DiffFile) precheck.Bundle { return f.bundle }

type fakePublisher struct{}

func (fakePublisher) PublishComment(_ context.Context, _ webhook.EventContext, _ string) error {
	return nil
}

type fakeLLMClient struct{ raw string }

func (f fakeLLMClient) Generate(_ context.Context, _ review.Request) (string, error) {
	return f.raw, nil
}

func validLLMJSON() string {
	return `{"assessment":"Change is a small, well-scoped refactor with no behavioral impact.","risks":[],"assumptions":[],"tradeoffs":[],"failure_modes":[],"recommendations":["add a regression test"],"verdict":"safe"}`
}

const testWebhookSecret = "topsecret"

func newTestServer(t *testing.T) (*Server, orchestrator.Singletons) {
	t.Helper()
	singletons := orchestrator.Singletons{
		Contract:         orchestrator.ContractIdentity{Version: "v1", Hash: "contracthash"},
		IdempotencyGuard: idempotency.NewLocalGuard(time.Hour, 1000),
		PipelinePermit:   permit.NewLocalSemaphore(4),
		LLMPermit:        permit.NewLocalSemaphore(2),
		Faults:           fault.NewController(false, nil, 1),
		History:          decision.NewLocalHistory(),
		Ledger:           attestation.NewLedger(),
		MerkleIndex:      merkleindex.New(),
		Metrics:          metrics.New(),
		InstanceMode:     "single-instance",
	}

	o := orchestrator.New(singletons,
		fakeDiffExtractor{files: []precheck.DiffFile{{Path: "main.go", ChangedLines: 10}}},
		passthroughFilter{},
		fakeClassifier{bundle: precheck.Bundle{HighCount: 1, MediumCount: 1}},
		review.NewCollaborator(fakeLLMClient{raw: validLLMJSON()}, singletons.LLMPermit, singletons.Faults),
		fakePublisher{},
	)

	s := NewServer(testWebhookSecret, o, singletons.History, singletons.MerkleIndex, singletons.Metrics)
	return s, singletons
}

func signedRequest(t *testing.T, method, path string, body []byte) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(string(body)))
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write(body)
	req.Header.Set("X-Signature-256", "sha256="+hex.EncodeToString(mac.Sum(nil)))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func webhookBody() []byte {
	return []byte(`{"delivery_id":"d1","event":"pull_request","action":"opened","owner":"acme","repo":"widgets","pr_number":7,"head_commit_id":"abc123"}`)
}

func TestWebhookHandler_AcceptsSignedAdmittedEvent(t *testing.T) {
	s, singletons := newTestServer(t)
	body := webhookBody()

	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, signedRequest(t, http.MethodPost, "/webhook", body))

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp WebhookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ReviewID)
	assert.NotEmpty(t, resp.IdempotencyKey)

	rec2 := httptest.NewRecorder()
	s.echo.ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/decisions/"+resp.ReviewID, nil))
	assert.Equal(t, http.StatusOK, rec2.Code)

	_ = singletons
}

func TestWebhookHandler_RejectsBadSignature(t *testing.T) {
	s, _ := newTestServer(t)
	body := webhookBody()

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(string(body)))
	req.Header.Set("X-Signature-256", "sha256=0000")

	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthHandler(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsHandler_ReturnsSnapshot(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var snap metrics.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
}

func TestListDecisionsHandler_RejectsBadLimit(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/decisions?limit=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec2 := httptest.NewRecorder()
	s.echo.ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/decisions?limit=101", nil))
	assert.Equal(t, http.StatusBadRequest, rec2.Code)
}

func TestListDecisionsHandler_DefaultLimitAndNewestFirst(t *testing.T) {
	s, singletons := newTestServer(t)
	ctx := context.Background()
	singletons.History.Append(ctx, decision.Record{ReviewID: "r1", Timestamp: time.Now().Add(-time.Minute)})
	singletons.History.Append(ctx, decision.Record{ReviewID: "r2", Timestamp: time.Now()})

	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/decisions", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DecisionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 50, resp.Meta.Limit)
	require.Len(t, resp.Decisions, 2)
	assert.Equal(t, "r2", resp.Decisions[0].ReviewID, "newest first")
}

func TestGetDecisionHandler_NotFound(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/decisions/does-not-exist", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVerifyHandler_ValidProof(t *testing.T) {
	s, singletons := newTestServer(t)
	body := webhookBody()

	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, signedRequest(t, http.MethodPost, "/webhook", body))
	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp WebhookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	rec2 := httptest.NewRecorder()
	s.echo.ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/verify/"+resp.ReviewID, nil))
	require.Equal(t, http.StatusOK, rec2.Code)

	var vresp VerifyResponse
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &vresp))
	assert.True(t, vresp.Valid)

	_ = singletons
}

func TestVerifyHandler_NotFound(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/verify/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMerkleRootHandler_EmptyIndexReturns404(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/merkle/root", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMerkleRootAndProof_RoundTrip(t *testing.T) {
	s, singletons := newTestServer(t)
	body := webhookBody()

	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, signedRequest(t, http.MethodPost, "/webhook", body))
	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp WebhookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	rootRec := httptest.NewRecorder()
	s.echo.ServeHTTP(rootRec, httptest.NewRequest(http.MethodGet, "/merkle/root", nil))
	require.Equal(t, http.StatusOK, rootRec.Code)
	var rootResp MerkleRootResponse
	require.NoError(t, json.Unmarshal(rootRec.Body.Bytes(), &rootResp))
	assert.Equal(t, 1, rootResp.LeafCount)
	assert.Equal(t, merkleAlgorithm, rootResp.Algorithm)

	proofRec := httptest.NewRecorder()
	s.echo.ServeHTTP(proofRec, httptest.NewRequest(http.MethodGet, "/merkle/proof/"+resp.ReviewID, nil))
	require.Equal(t, http.StatusOK, proofRec.Code)
	var proofResp MerkleProofResponse
	require.NoError(t, json.Unmarshal(proofRec.Body.Bytes(), &proofResp))
	assert.Equal(t, rootResp.Root, proofResp.Root)

	verifyBody, err := json.Marshal(MerkleVerifyRequest{
		LeafHash: proofResp.ExecutionProofHash,
		Proof:    proofResp.Proof,
		Root:     proofResp.Root,
	})
	require.NoError(t, err)

	verifyRec := httptest.NewRecorder()
	verifyReq := httptest.NewRequest(http.MethodPost, "/merkle/verify", strings.NewReader(string(verifyBody)))
	verifyReq.Header.Set("Content-Type", "application/json")
	s.echo.ServeHTTP(verifyRec, verifyReq)
	require.Equal(t, http.StatusOK, verifyRec.Code)

	var verifyResp MerkleVerifyResponse
	require.NoError(t, json.Unmarshal(verifyRec.Body.Bytes(), &verifyResp))
	assert.True(t, verifyResp.Valid)
	assert.Equal(t, rootResp.Root, verifyResp.RecomputedRoot)

	_ = singletons
}

func TestMerkleProofHandler_UnknownReviewID(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/merkle/proof/does-not-exist", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMerkleVerifyHandler_BadTripleReturns409(t *testing.T) {
	s, _ := newTestServer(t)
	body, err := json.Marshal(MerkleVerifyRequest{LeafHash: "deadbeef", Root: "notrelated"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/merkle/verify", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
