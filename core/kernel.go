package core

import (
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Kernel owns one rollup process's inbox-drain loop: it reads framed
// messages from the HostRuntime, classifies them, and routes them to the
// Pipeline or applies them directly (deposits, level markers).
type Kernel struct {
	hrt      HostRuntime
	outbox   *OutboxQueue
	pipeline *Pipeline
	config   *KernelConfig
	registry *RuntimeRegistry
	log      *logrus.Entry
}

func NewKernel(hrt HostRuntime, cfg *KernelConfig) *Kernel {
	outbox := NewOutboxQueue(cfg.OutboxBound)
	registry := NewRuntimeRegistry()
	return &Kernel{
		hrt:      hrt,
		outbox:   outbox,
		pipeline: NewPipeline(hrt, outbox, cfg).WithRegistry(registry),
		config:   cfg,
		registry: registry,
		log:      logrus.WithField("component", "kernel"),
	}
}

// DrainLevel processes every message currently available from the inbox,
// per spec §4.5's determinism rule (inbox order, no parallelism), until
// the inbox reports empty.
func (k *Kernel) DrainLevel() error {
	for {
		raw, ok, err := k.hrt.ReadInbox()
		if err != nil {
			return Wrap(KindStorageError, err, "read inbox")
		}
		if !ok {
			return nil
		}
		if err := k.processOne(raw); err != nil {
			return err
		}
	}
}

func (k *Kernel) processOne(raw []byte) error {
	msg, keep, err := DecodeInboxMessage(raw, k.config.RollupAddress)
	if err != nil {
		k.log.WithError(err).Warn("malformed inbox frame, skipping")
		return nil
	}
	if !keep {
		return nil
	}
	switch m := msg.(type) {
	case StartOfLevelMessage:
		return nil
	case EndOfLevelMessage:
		return k.hrt.WriteOutbox(k.outbox.Drain())
	case InfoPerLevelMessage:
		k.log.WithFields(logrus.Fields{
			"predecessor_timestamp": m.PredecessorTimestamp,
			"predecessor_hash":      m.PredecessorHash.Hex(),
		}).Debug("info per level")
		return nil
	case TransferMessage:
		return k.pipeline.ProcessTransfer(m)
	case ExternalMessage:
		return k.pipeline.ProcessExternal(m.Payload)
	default:
		return nil
	}
}

// Run drains the inbox on a fixed cadence until ctx-equivalent shutdown is
// requested via stop. Used by `jstzd run`.
func (k *Kernel) Run(stop <-chan struct{}, pollInterval time.Duration) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return nil
		case <-ticker.C:
			if err := k.DrainLevel(); err != nil {
				return err
			}
		}
	}
}

// DebugServer is the thin ops/test harness from SPEC_FULL's module O: it is
// not the out-of-scope jstz-node gateway, just a way to push a signed
// operation's bytes at the pipeline and poll for its receipt, grounded on
// the teacher's /execute handler and rate limiter.
type DebugServer struct {
	kernel  *Kernel
	limiter *rate.Limiter
}

func NewDebugServer(k *Kernel) *DebugServer {
	return &DebugServer{kernel: k, limiter: rate.NewLimiter(200, 100)}
}

func (s *DebugServer) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *DebugServer) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.rateLimit)
	r.HandleFunc("/operations", s.handleSubmit).Methods(http.MethodPost)
	r.HandleFunc("/receipts/{hash}", s.handleReceipt).Methods(http.MethodGet)
	r.HandleFunc("/runtime-instances", s.handleRuntimeInstances).Methods(http.MethodGet)
	return r
}

// handleRuntimeInstances reports every top-level RunFunction execution the
// pipeline has started since process boot, for devnet debugging. Hosts
// created for nested fetch calls and FA deposit proxy notifications are not
// tracked.
func (s *DebugServer) handleRuntimeInstances(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	instances := s.kernel.registry.List()
	w.Write([]byte("["))
	for i, info := range instances {
		if i > 0 {
			w.Write([]byte(","))
		}
		w.Write([]byte(`{"request_id":"` + info.RequestID +
			`","self":"` + info.SelfAddress.String() +
			`","operation_hash":"` + info.OperationHash.Hex() +
			`","status":"` + info.Status + `"}`))
	}
	w.Write([]byte("]"))
}

func (s *DebugServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.kernel.pipeline.ProcessExternal(raw); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *DebugServer) handleReceipt(w http.ResponseWriter, r *http.Request) {
	hexHash := mux.Vars(r)["hash"]
	hash, err := HashFromHex(hexHash)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	tx := NewTransaction(s.kernel.hrt, nil)
	receipt, ok, err := NewReceiptStore(tx).Get(hash)
	tx.Rollback()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "receipt not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeReceiptJSON(w, receipt)
}

func writeReceiptJSON(w io.Writer, r Receipt) {
	type wire struct {
		OperationHash string `json:"operation_hash"`
		Success       bool   `json:"success"`
	}
	_, _ = w.Write([]byte(`{"operation_hash":"` + hex.EncodeToString(r.OperationHash[:]) + `","success":` + boolString(r.Success()) + "}"))
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
