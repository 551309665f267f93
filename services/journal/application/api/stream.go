package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ghuser/persistredis/pkg/httpx"
	"github.com/ghuser/persistredis/pkg/logger"
	appsvcs "github.com/ghuser/persistredis/services/journal/application/services"
)

// streamSSE pulls envelopes from src one at a time and writes each as a
// server-sent event, flushing after every write so a live query's tail
// actually reaches the client as it happens. Runs until src.Next returns
// io.EOF (terminal "complete" event), an error (terminal "error" event),
// or the client disconnects.
func streamSSE(w http.ResponseWriter, r *http.Request, src appsvcs.Source, log logger.Logger) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.JSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		env, err := src.Next(r.Context())
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprint(w, "event: complete\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			log.WarnContext(r.Context(), "source stream ended with error", "error", err)
			writeSSEError(w, err)
			flusher.Flush()
			return
		}

		payload, err := json.Marshal(EnvelopeResponse{
			Offset:        env.Offset.Value(),
			PersistenceID: env.PersistenceID,
			SequenceNr:    env.SequenceNr,
			Payload:       env.Payload,
		})
		if err != nil {
			log.ErrorContext(r.Context(), "marshal envelope for sse", "error", err)
			writeSSEError(w, err)
			flusher.Flush()
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}
}

func writeSSEError(w http.ResponseWriter, err error) {
	body, marshalErr := json.Marshal(map[string]string{"error": err.Error()})
	if marshalErr != nil {
		body = []byte(`{"error":"internal error"}`)
	}
	fmt.Fprintf(w, "event: error\ndata: %s\n\n", body)
}
