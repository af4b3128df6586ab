package core

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/inventory/internal/logging"
	"github.com/JonMunkholm/inventory/internal/metrics"
)

// ImportPhase is the lifecycle stage of an import job.
type ImportPhase string

const (
	PhaseRunning  ImportPhase = "running"
	PhaseComplete ImportPhase = "complete"
	PhaseFailed   ImportPhase = "failed"
)

// ImportProgress is streamed to subscribers after every record.
type ImportProgress struct {
	ImportID  string         `json:"importId"`
	FileName  string         `json:"fileName"`
	Phase     ImportPhase    `json:"phase"`
	Total     int            `json:"total"`
	Processed int            `json:"processed"`
	Percent   int            `json:"percent"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Last      *ImportOutcome `json:"last,omitempty"`
	Error     string         `json:"error,omitempty"`
}

type activeImport struct {
	ID       string
	FileName string
	Done     chan struct{}

	mu        sync.Mutex
	progress  ImportProgress
	result    *ImportResult
	listeners []chan ImportProgress
}

func (a *activeImport) snapshot() ImportProgress {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.progress
}

// update applies fn to the progress and fans the new value out. Slow
// listeners miss intermediate updates rather than blocking the import.
func (a *activeImport) update(fn func(*ImportProgress)) {
	a.mu.Lock()
	defer a.mu.Unlock()

	fn(&a.progress)
	for _, ch := range a.listeners {
		select {
		case ch <- a.progress:
		default:
		}
	}
}

func (a *activeImport) finish(res *ImportResult) {
	a.mu.Lock()
	a.result = res
	for _, ch := range a.listeners {
		close(ch)
	}
	a.listeners = nil
	a.mu.Unlock()
	close(a.Done)
}

// ValidateImportRows checks parsed rows against the current categories.
func (s *Service) ValidateImportRows(ctx context.Context, rows []Row) (*ImportValidation, error) {
	names, err := s.CategoryNames(ctx)
	if err != nil {
		return nil, err
	}
	v := ValidateImport(rows, names, s.now())
	return &v, nil
}

// ValidateImportFile parses an uploaded spreadsheet and validates it.
func (s *Service) ValidateImportFile(ctx context.Context, fileName string, data []byte) (*ImportValidation, error) {
	rows, err := ParseImportFile(fileName, data)
	if err != nil {
		return nil, err
	}
	return s.ValidateImportRows(ctx, rows)
}

// ImportRequest describes an import job.
type ImportRequest struct {
	FileName string
	// Data is the original upload, archived when an Archiver is configured.
	Data     []byte
	Products []Product
}

// StartImport runs the importer in the background and returns its id.
// Jobs cannot be cancelled once started; they end when every record is
// processed or the import timeout elapses.
func (s *Service) StartImport(ctx context.Context, req ImportRequest) (string, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	id := uuid.NewString()
	job := &activeImport{
		ID:       id,
		FileName: req.FileName,
		Done:     make(chan struct{}),
		progress: ImportProgress{
			ImportID: id,
			FileName: req.FileName,
			Phase:    PhaseRunning,
			Total:    len(req.Products),
		},
	}

	s.mu.Lock()
	s.imports[id] = job
	s.mu.Unlock()

	actor := ActorFromContext(ctx)
	jobCtx := logging.ContextWith(context.Background(), "import_id", id, "actor", actor)
	jobCtx = ContextWithActor(jobCtx, actor)

	go func() {
		defer s.limiter.Release()
		defer s.cleanup(id, s.opts.ResultRetention)
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in import", "import_id", id, "panic", r)
				msg := fmt.Sprintf("internal error: %v", r)
				job.update(func(p *ImportProgress) {
					p.Phase = PhaseFailed
					p.Error = msg
				})
				job.finish(&ImportResult{ImportID: id, FileName: req.FileName, Error: msg})
			}
		}()

		s.runImportJob(jobCtx, job, req)
	}()

	return id, nil
}

func (s *Service) runImportJob(ctx context.Context, job *activeImport, req ImportRequest) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.ImportTimeout)
	defer cancel()

	logger := logging.FromContext(ctx)
	logger.Info("import started", "file", req.FileName, "products", len(req.Products))

	metrics.ImportsActive.Inc()
	defer metrics.ImportsActive.Dec()

	if s.opts.Archive != nil && len(req.Data) > 0 {
		key := archiveKey(s.now(), job.ID, req.FileName)
		if err := s.opts.Archive.Put(ctx, key, req.Data); err != nil {
			logger.Warn("archive import file failed", "key", key, "error", err)
		}
	}

	res := s.RunImport(ctx, req.Products, func(percent int, out ImportOutcome) {
		job.update(func(p *ImportProgress) {
			p.Processed++
			p.Percent = percent
			if out.Status == OutcomeSuccess {
				p.Succeeded++
			} else {
				p.Failed++
			}
			last := out
			p.Last = &last
		})
	})
	res.ImportID = job.ID
	res.FileName = req.FileName

	job.update(func(p *ImportProgress) {
		p.Phase = PhaseComplete
		p.Percent = 100
	})
	job.finish(&res)

	logger.Info("import finished",
		"succeeded", res.Succeeded,
		"failed", res.Failed,
		"duration_ms", res.DurationMs,
	)
}

// RunImport imports products synchronously. Used by background jobs and
// the command line tool.
func (s *Service) RunImport(ctx context.Context, products []Product, onProgress ProgressFunc) ImportResult {
	im := &Importer{
		Checker:    s,
		Creator:    importWriter{s},
		OnComplete: s.opts.OnImportComplete,
		now:        s.now,
	}

	start := time.Now()
	res := im.Run(ctx, products, func(percent int, out ImportOutcome) {
		metrics.ImportRecords.WithLabelValues(out.Status).Inc()
		if out.Status == OutcomeError {
			logging.FromContext(ctx).Debug("import record failed", "sku", out.SKU, "reason", out.Message)
		}
		if onProgress != nil {
			onProgress(percent, out)
		}
	})
	metrics.ImportDuration.Observe(time.Since(start).Seconds())
	return res
}

// importWriter lets the importer reuse the service's timestamping insert.
type importWriter struct{ s *Service }

func (w importWriter) CreateProduct(ctx context.Context, p Product) (string, error) {
	return w.s.insertProduct(ctx, &p)
}

func archiveKey(at time.Time, id, fileName string) string {
	name := filepath.Base(fileName)
	if name == "." || name == "/" || name == "" {
		name = "import"
	}
	return fmt.Sprintf("imports/%s/%s-%s", at.UTC().Format("2006/01/02"), id, name)
}

// SubscribeImport returns a channel of progress updates. The current state
// is delivered first; the channel closes when the job finishes.
func (s *Service) SubscribeImport(id string) (<-chan ImportProgress, error) {
	job, err := s.lookupImport(id)
	if err != nil {
		return nil, err
	}

	ch := make(chan ImportProgress, 10)

	job.mu.Lock()
	defer job.mu.Unlock()

	ch <- job.progress
	if job.result != nil {
		close(ch)
		return ch, nil
	}
	job.listeners = append(job.listeners, ch)
	return ch, nil
}

// ImportProgressOf returns the current progress without blocking.
func (s *Service) ImportProgressOf(id string) (ImportProgress, error) {
	job, err := s.lookupImport(id)
	if err != nil {
		return ImportProgress{}, err
	}
	return job.snapshot(), nil
}

// ImportResultOf waits for the job to finish and returns its result.
func (s *Service) ImportResultOf(ctx context.Context, id string) (*ImportResult, error) {
	job, err := s.lookupImport(id)
	if err != nil {
		return nil, err
	}

	select {
	case <-job.Done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	job.mu.Lock()
	defer job.mu.Unlock()
	return job.result, nil
}

// ImportStatus reports limiter occupancy.
func (s *Service) ImportStatus() ImportLimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until running imports finish or ctx ends.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

func (s *Service) lookupImport(id string) (*activeImport, error) {
	s.mu.RLock()
	job, ok := s.imports[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrImportNotFound, id)
	}
	return job, nil
}

// cleanup forgets a finished job after delay.
func (s *Service) cleanup(id string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.imports, id)
		s.mu.Unlock()
	})
}
