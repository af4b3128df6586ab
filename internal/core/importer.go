package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// Outcome statuses.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// AutoDismissDelay is the hint sent to clients when every record succeeded.
const AutoDismissDelay = 2 * time.Second

// ImportOutcome is the result of writing one product.
type ImportOutcome struct {
	Product string `json:"product"`
	SKU     string `json:"sku"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ImportResult summarizes a finished import run.
type ImportResult struct {
	ImportID       string          `json:"importId,omitempty"`
	FileName       string          `json:"fileName,omitempty"`
	Outcomes       []ImportOutcome `json:"outcomes"`
	Total          int             `json:"total"`
	Succeeded      int             `json:"succeeded"`
	Failed         int             `json:"failed"`
	Progress       int             `json:"progress"`
	AllSucceeded   bool            `json:"allSucceeded"`
	DismissAfterMs int64           `json:"dismissAfterMs"`
	DurationMs     int64           `json:"durationMs"`
	Error          string          `json:"error,omitempty"`
}

// SKUChecker answers whether a SKU is already used, ignoring excludeID.
type SKUChecker interface {
	CheckSKU(ctx context.Context, sku, excludeID string) (*Product, error)
}

// ProductCreator persists a new product.
type ProductCreator interface {
	CreateProduct(ctx context.Context, p Product) (string, error)
}

// Importer writes validated products one at a time. A failure on one
// record never stops the batch.
type Importer struct {
	Checker SKUChecker
	Creator ProductCreator

	// OnComplete runs after the last record, typically to refresh caches
	// or views that list products.
	OnComplete func(ImportResult)

	now func() time.Time
}

// ProgressFunc receives the percentage of records processed.
type ProgressFunc func(percent int, outcome ImportOutcome)

// Run imports products sequentially and reports progress after each one.
func (im *Importer) Run(ctx context.Context, products []Product, onProgress ProgressFunc) ImportResult {
	now := im.now
	if now == nil {
		now = time.Now
	}
	start := now()

	res := ImportResult{Outcomes: make([]ImportOutcome, 0, len(products)), Total: len(products)}
	for i, p := range products {
		out := im.importOne(ctx, p)
		res.Outcomes = append(res.Outcomes, out)
		if out.Status == OutcomeSuccess {
			res.Succeeded++
		} else {
			res.Failed++
		}

		res.Progress = progressPercent(i+1, len(products))
		if onProgress != nil {
			onProgress(res.Progress, out)
		}
	}
	if len(products) == 0 {
		res.Progress = 100
	}

	res.AllSucceeded = res.Failed == 0 && res.Total > 0
	if res.AllSucceeded {
		res.DismissAfterMs = AutoDismissDelay.Milliseconds()
	}
	res.DurationMs = now().Sub(start).Milliseconds()

	if im.OnComplete != nil {
		im.OnComplete(res)
	}
	return res
}

func (im *Importer) importOne(ctx context.Context, p Product) ImportOutcome {
	out := ImportOutcome{Product: p.Name, SKU: p.SKU}

	if err := ctx.Err(); err != nil {
		out.Status, out.Message = OutcomeError, err.Error()
		return out
	}

	existing, err := im.Checker.CheckSKU(ctx, p.SKU, "")
	if err != nil {
		out.Status, out.Message = OutcomeError, err.Error()
		return out
	}
	if existing != nil {
		out.Status = OutcomeError
		out.Message = fmt.Sprintf("SKU %q already exists in: %s", p.SKU, existing.Name)
		return out
	}

	if _, err := im.Creator.CreateProduct(ctx, p); err != nil {
		out.Status = OutcomeError
		if errors.Is(err, ErrDuplicateSKU) {
			out.Message = fmt.Sprintf("SKU %q already exists", p.SKU)
		} else {
			out.Message = err.Error()
		}
		return out
	}

	out.Status, out.Message = OutcomeSuccess, "Imported successfully"
	return out
}

func progressPercent(done, total int) int {
	if total == 0 {
		return 100
	}
	return int(math.Round(float64(done) / float64(total) * 100))
}
