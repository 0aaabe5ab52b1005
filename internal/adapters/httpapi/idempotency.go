package httpapi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chapter-connect/membership-api/internal/domain"
	"github.com/chapter-connect/membership-api/internal/ports/out/idempotency"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	replayedHeader       = "Idempotent-Replayed"
)

// idempotent runs handle at most once per (key, identity, route, body):
//   - replay if same identity+key+route+bodyHash
//   - reject if same identity+key+route with a different bodyHash (409)
//   - reject while an identical request is still being handled (409)
//
// Requests without an Idempotency-Key header run unconditionally. Only 2xx responses are
// stored for replay; any other outcome releases the reservation so the client may retry.
func (s *Server) idempotent(w http.ResponseWriter, r *http.Request, actor domain.IdentityID, route string, req any, handle func() (int, any, error)) {
	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if key == "" || s.idem == nil {
		status, body, err := handle()
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, status, body)
		return
	}

	ctx := r.Context()
	bodyHash, err := hashRequest(req)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	metaFP := idempotency.Fingerprint{
		Key:     idempotency.Key(key),
		Subject: actor,
		Method:  r.Method,
		Route:   route,
	}
	meta, created, err := s.idem.Reserve(ctx, metaFP, idempotency.Record{
		ContentType: "text/plain",
		Body:        []byte(bodyHash),
		CreatedAt:   s.now(),
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if !created && string(meta.Body) != bodyHash {
		writeError(w, r, http.StatusConflict, "IDEMPOTENCY_KEY_REUSE", "idempotency key reuse with different payload", nil)
		return
	}

	respFP := metaFP
	respFP.BodyHash = bodyHash
	prev, created, err := s.idem.Reserve(ctx, respFP, idempotency.Record{
		ContentType: "application/json",
		CreatedAt:   s.now(),
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if !created {
		if prev.Pending() {
			writeError(w, r, http.StatusConflict, "IDEMPOTENCY_KEY_IN_PROGRESS", "a request with this idempotency key is still being processed", nil)
			return
		}
		w.Header().Set("Content-Type", prev.ContentType)
		w.Header().Set(replayedHeader, "true")
		w.WriteHeader(prev.StatusCode)
		_, _ = w.Write(prev.Body)
		return
	}

	status, body, err := handle()
	if err != nil {
		s.release(r, respFP)
		s.writeAppError(w, r, err)
		return
	}
	b, err := json.Marshal(body)
	if err != nil {
		s.release(r, respFP)
		s.writeAppError(w, r, err)
		return
	}
	if status >= 200 && status < 300 {
		if err := s.idem.Put(ctx, respFP, idempotency.Record{
			StatusCode:  status,
			ContentType: "application/json",
			Body:        b,
			CreatedAt:   s.now(),
		}); err != nil {
			s.log.Warn("idempotent response not stored", zap.String("route", route), zap.Error(err))
		}
	} else {
		s.release(r, respFP)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

// release drops a reservation so a retry with the same key runs again.
func (s *Server) release(r *http.Request, fp idempotency.Fingerprint) {
	if err := s.idem.Delete(context.WithoutCancel(r.Context()), fp); err != nil {
		s.log.Warn("idempotency reservation not released", zap.String("route", fp.Route), zap.Error(err))
	}
}

func (s *Server) now() time.Time {
	if s.clk == nil {
		return time.Now().UTC()
	}
	return s.clk.Now().UTC()
}

// hashRequest hashes the decoded request so formatting differences do not matter.
func hashRequest(req any) (string, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
