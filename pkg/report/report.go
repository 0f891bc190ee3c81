// Package report renders a finished run into a file for operators and for
// downstream tooling.
package report

import (
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"

	"github.com/forum-rewards/rewarder/pkg/rewardsTypes"
	"github.com/gocarina/gocsv"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	Format_Yaml Format = "yaml"
	Format_Csv  Format = "csv"
)

type OperationStatus string

const (
	OperationStatus_Confirmed    OperationStatus = "confirmed"
	OperationStatus_Failed       OperationStatus = "failed"
	OperationStatus_Unconfirmed  OperationStatus = "unconfirmed"
	OperationStatus_NotAttempted OperationStatus = "not_attempted"
)

// OperationRow is one planned operation and what became of it.
type OperationRow struct {
	Type     string          `csv:"type" yaml:"type"`
	Identity string          `csv:"identity" yaml:"identity,omitempty"`
	Value    string          `csv:"value" yaml:"value,omitempty"`
	To       string          `csv:"to" yaml:"to,omitempty"`
	Amount   string          `csv:"amount" yaml:"amount,omitempty"`
	TxHash   string          `csv:"tx_hash" yaml:"txHash,omitempty"`
	Status   OperationStatus `csv:"status" yaml:"status"`
}

type QualifiedRow struct {
	Identity      string `yaml:"identity"`
	ObservedCount uint64 `yaml:"observedCount"`
	RecordedCount uint64 `yaml:"recordedCount"`
	WalletAddress string `yaml:"walletAddress"`
}

type SnapshotSummary struct {
	Records    int `yaml:"records"`
	Inactive   int `yaml:"inactive"`
	Malformed  int `yaml:"malformed"`
	Duplicates int `yaml:"duplicates"`
}

type RefillSummary struct {
	UnclaimedTotal string `yaml:"unclaimedTotal"`
	LedgerBalance  string `yaml:"ledgerBalance"`
	RefillAmount   string `yaml:"refillAmount"`
}

type RunReport struct {
	RunId      string           `yaml:"runId"`
	Status     string           `yaml:"status"`
	Error      string           `yaml:"error,omitempty"`
	Snapshot   *SnapshotSummary `yaml:"snapshot,omitempty"`
	Qualified  []*QualifiedRow  `yaml:"qualified"`
	Refill     *RefillSummary   `yaml:"refill,omitempty"`
	Operations []*OperationRow  `yaml:"operations"`
	Messages   []string         `yaml:"messages"`
}

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case Format_Yaml, "":
		return Format_Yaml, nil
	case Format_Csv:
		return Format_Csv, nil
	}
	return "", fmt.Errorf("unsupported report format '%s'", s)
}

func bigString(i *big.Int) string {
	if i == nil {
		return ""
	}
	return i.String()
}

func operationRow(op *rewardsTypes.Operation) *OperationRow {
	row := &OperationRow{Type: string(op.Type)}
	switch op.Type {
	case rewardsTypes.OperationType_SetCount:
		row.Identity = op.Identity
		row.Value = bigString(op.Value)
	case rewardsTypes.OperationType_Refill:
		row.To = op.To.Hex()
		row.Amount = bigString(op.Amount)
	}
	return row
}

// BuildOperationRows lists every planned operation in execution order with
// its outcome.
func BuildOperationRows(result *rewardsTypes.RunResult) []*OperationRow {
	rows := make([]*OperationRow, 0)
	if result.Plan == nil {
		return rows
	}

	txHashes := make(map[*rewardsTypes.Operation]string, len(result.Completed))
	for _, executed := range result.Completed {
		txHashes[executed.Operation] = executed.TxHash.Hex()
	}

	for _, op := range result.Plan.Operations() {
		row := operationRow(op)
		switch {
		case txHashes[op] != "":
			row.TxHash = txHashes[op]
			row.Status = OperationStatus_Confirmed
		case result.UnconfirmedOperation != nil && result.UnconfirmedOperation.Operation == op:
			row.TxHash = result.UnconfirmedOperation.TxHash.Hex()
			row.Status = OperationStatus_Unconfirmed
		case result.FailedOperation == op:
			row.Status = OperationStatus_Failed
		default:
			row.Status = OperationStatus_NotAttempted
		}
		rows = append(rows, row)
	}
	return rows
}

func BuildRunReport(result *rewardsTypes.RunResult) *RunReport {
	r := &RunReport{
		RunId:      result.RunId,
		Status:     string(result.Status),
		Qualified:  make([]*QualifiedRow, 0, len(result.Qualified)),
		Operations: BuildOperationRows(result),
		Messages:   result.Messages,
	}
	if result.Error != nil {
		r.Error = result.Error.Error()
	}
	if result.Snapshot != nil {
		r.Snapshot = &SnapshotSummary{
			Records:    len(result.Snapshot.Records),
			Inactive:   result.Snapshot.Inactive,
			Malformed:  result.Snapshot.Malformed,
			Duplicates: result.Snapshot.Duplicates,
		}
	}
	for _, q := range result.Qualified {
		r.Qualified = append(r.Qualified, &QualifiedRow{
			Identity:      q.Identity,
			ObservedCount: q.ObservedCount,
			RecordedCount: q.RecordedCount,
			WalletAddress: q.WalletAddress.Hex(),
		})
	}
	if result.Plan != nil && result.Plan.Refill != nil {
		refill := result.Plan.Refill
		r.Refill = &RefillSummary{
			UnclaimedTotal: bigString(refill.UnclaimedTotal),
			LedgerBalance:  bigString(refill.LedgerBalance),
			RefillAmount:   bigString(refill.RefillAmount),
		}
	}
	if r.Messages == nil {
		r.Messages = make([]string, 0)
	}
	return r
}

// Write renders the run. YAML carries the whole report, CSV only the
// operation rows.
func Write(w io.Writer, format Format, result *rewardsTypes.RunResult) error {
	switch format {
	case Format_Yaml:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(BuildRunReport(result)); err != nil {
			return fmt.Errorf("failed to encode yaml report: %w", err)
		}
		return enc.Close()
	case Format_Csv:
		if err := gocsv.Marshal(BuildOperationRows(result), w); err != nil {
			return fmt.Errorf("failed to encode csv report: %w", err)
		}
		return nil
	}
	return fmt.Errorf("unsupported report format '%s'", format)
}

func WriteFile(path string, format Format, result *rewardsTypes.RunResult) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	return Write(f, format, result)
}
