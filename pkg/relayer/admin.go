// Copyright 2025 Certen Protocol
//
// Admin HTTP surface (spec §6): plain net/http + http.ServeMux, no
// router library, matching the teacher's main.go exactly. Serves the
// two spec-mandated routes plus /health and /metrics (spec §11).

package relayer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/catalystdao/generalised-relayer-sub000/pkg/chaintypes"
)

// StoreOps is the subset of *store.Store the admin surface needs.
type StoreOps interface {
	GetTxHashIndex(ctx context.Context, chainID, txHash string) ([]chaintypes.MessageID, error)
	GetAMBMessage(ctx context.Context, chainID string, id chaintypes.MessageID) (*chaintypes.AMBMessage, error)
	SetAMBMessage(ctx context.Context, chainID string, msg chaintypes.AMBMessage) error
}

// NewAdminServer builds the admin HTTP mux: /health, /metrics,
// GET /getAMBs, and POST /prioritiseAMBMessage.
func NewAdminServer(health *HealthStatus, metrics *Metrics, store StoreOps) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch health.Status() {
		case "ok":
			w.WriteHeader(http.StatusOK)
		case "degraded":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		w.Write(health.ToJSON())
	})

	mux.Handle("/metrics", metrics.Handler())

	mux.HandleFunc("/getAMBs", func(w http.ResponseWriter, r *http.Request) {
		chainID := r.URL.Query().Get("chainId")
		txHash := r.URL.Query().Get("txHash")
		if chainID == "" || txHash == "" {
			http.Error(w, "chainId and txHash are required", http.StatusBadRequest)
			return
		}

		ids, err := store.GetTxHashIndex(r.Context(), chainID, txHash)
		if err != nil {
			http.Error(w, fmt.Sprintf("lookup failed: %v", err), http.StatusInternalServerError)
			return
		}

		messages := make([]chaintypes.AMBMessage, 0, len(ids))
		for _, id := range ids {
			msg, err := store.GetAMBMessage(r.Context(), chainID, id)
			if err != nil || msg == nil {
				continue
			}
			messages = append(messages, *msg)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(messages)
	})

	mux.HandleFunc("/prioritiseAMBMessage", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}

		var body struct {
			MessageIdentifier  string `json:"messageIdentifier"`
			AMB                string `json:"amb"`
			SourceChainID      string `json:"sourceChainId"`
			DestinationChainID string `json:"destinationChainId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, fmt.Sprintf("invalid body: %v", err), http.StatusBadRequest)
			return
		}

		id, err := chaintypes.MessageIDFromHex(body.MessageIdentifier)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid messageIdentifier: %v", err), http.StatusBadRequest)
			return
		}

		msg, err := store.GetAMBMessage(r.Context(), body.SourceChainID, id)
		if err != nil {
			http.Error(w, fmt.Sprintf("lookup failed: %v", err), http.StatusInternalServerError)
			return
		}
		if msg == nil {
			msg = &chaintypes.AMBMessage{MessageID: id, Bridge: body.AMB, FromChain: body.SourceChainID, ToChain: body.DestinationChainID}
		}
		msg.Priority = true

		if err := store.SetAMBMessage(r.Context(), body.SourceChainID, *msg); err != nil {
			http.Error(w, fmt.Sprintf("set priority failed: %v", err), http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}
