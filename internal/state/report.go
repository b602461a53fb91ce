package state

import (
	"context"
	"encoding/base64"

	"github.com/vmihailenco/msgpack/v5"
)

const CycleReportKey = "sweep:last_cycle"

// CycleReport is the persisted outcome of the most recent sweep cycle. It is
// informational only; the pipeline never reads it back to make decisions.
type CycleReport struct {
	StartedAtMS   int64   `msgpack:"started_at_ms"`
	FinishedAtMS  int64   `msgpack:"finished_at_ms"`
	Target        string  `msgpack:"target"`
	DryRun        bool    `msgpack:"dry_run"`
	Consolidated  int     `msgpack:"consolidated"`
	Sold          int     `msgpack:"sold"`
	Dust          int     `msgpack:"dust"`
	Skipped       int     `msgpack:"skipped"`
	Failed        int     `msgpack:"failed"`
	DustConverted int     `msgpack:"dust_converted"`
	DustDeferred  int     `msgpack:"dust_deferred"`
	NotionalSold  float64 `msgpack:"notional_sold"`
}

func SaveCycleReport(ctx context.Context, store Store, report CycleReport) error {
	if store == nil {
		return nil
	}
	payload, err := msgpack.Marshal(report)
	if err != nil {
		return err
	}
	return store.Set(ctx, CycleReportKey, base64.StdEncoding.EncodeToString(payload))
}

func LoadCycleReport(ctx context.Context, store Store) (CycleReport, bool, error) {
	if store == nil {
		return CycleReport{}, false, nil
	}
	raw, ok, err := store.Get(ctx, CycleReportKey)
	if err != nil || !ok {
		return CycleReport{}, false, err
	}
	payload, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return CycleReport{}, false, err
	}
	var report CycleReport
	if err := msgpack.Unmarshal(payload, &report); err != nil {
		return CycleReport{}, false, err
	}
	return report, true, nil
}
