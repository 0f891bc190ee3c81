package report

import (
	"bytes"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/forum-rewards/rewarder/pkg/rewardsTypes"
	"github.com/gocarina/gocsv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

var ledgerAddress = common.HexToAddress("0x00000000000000000000000000000000000000aa")

func failedRun() *rewardsTypes.RunResult {
	setA := rewardsTypes.NewSetCountOperation("a@x.com", big.NewInt(3))
	setB := rewardsTypes.NewSetCountOperation("b@x.com", big.NewInt(2))
	refill := rewardsTypes.NewRefillOperation(ledgerAddress, big.NewInt(70))

	writeErr := &rewardsTypes.LedgerWriteError{
		Operation: setB,
		Stage:     rewardsTypes.WriteStage_Submit,
		Err:       errors.New("nonce too low"),
	}

	return &rewardsTypes.RunResult{
		RunId:  "run-1",
		Status: rewardsTypes.RunStatus_Failed,
		Snapshot: &rewardsTypes.Snapshot{
			Records:  []*rewardsTypes.ActivityRecord{{Identity: "a@x.com", ActivityCount: 5}, {Identity: "b@x.com", ActivityCount: 3}},
			Inactive: 1,
		},
		Qualified: []*rewardsTypes.QualifiedIdentity{
			{Identity: "a@x.com", ObservedCount: 5, RecordedCount: 2, WalletAddress: common.HexToAddress("0x01")},
			{Identity: "b@x.com", ObservedCount: 3, RecordedCount: 1, WalletAddress: common.HexToAddress("0x02")},
		},
		Plan: &rewardsTypes.Plan{
			CountUpdates:    []*rewardsTypes.Operation{setA, setB},
			Refill:          rewardsTypes.NewRefillDecision(big.NewInt(120), big.NewInt(50)),
			RefillOperation: refill,
		},
		Completed: []*rewardsTypes.ExecutedOperation{
			{Operation: setA, TxHash: common.HexToHash("0xabc")},
		},
		FailedOperation: setB,
		Messages:        []string{"first", "second"},
		Error:           writeErr,
	}
}

func Test_BuildOperationRows(t *testing.T) {
	t.Run("Should mark each planned operation with its outcome", func(t *testing.T) {
		rows := BuildOperationRows(failedRun())
		require.Len(t, rows, 3)

		assert.Equal(t, OperationStatus_Confirmed, rows[0].Status)
		assert.Equal(t, common.HexToHash("0xabc").Hex(), rows[0].TxHash)
		assert.Equal(t, "a@x.com", rows[0].Identity)
		assert.Equal(t, "3", rows[0].Value)

		assert.Equal(t, OperationStatus_Failed, rows[1].Status)
		assert.Equal(t, "", rows[1].TxHash)

		assert.Equal(t, OperationStatus_NotAttempted, rows[2].Status)
		assert.Equal(t, "refill", rows[2].Type)
		assert.Equal(t, "70", rows[2].Amount)
		assert.Equal(t, ledgerAddress.Hex(), rows[2].To)
	})
	t.Run("Should mark an unconfirmed operation", func(t *testing.T) {
		run := failedRun()
		run.Status = rewardsTypes.RunStatus_Cancelled
		run.UnconfirmedOperation = &rewardsTypes.ExecutedOperation{
			Operation: run.Plan.CountUpdates[1],
			TxHash:    common.HexToHash("0xdef"),
		}

		rows := BuildOperationRows(run)
		assert.Equal(t, OperationStatus_Unconfirmed, rows[1].Status)
		assert.Equal(t, common.HexToHash("0xdef").Hex(), rows[1].TxHash)
	})
	t.Run("Should return no rows without a plan", func(t *testing.T) {
		rows := BuildOperationRows(&rewardsTypes.RunResult{Status: rewardsTypes.RunStatus_Failed})
		assert.Len(t, rows, 0)
	})
}

func Test_Write(t *testing.T) {
	t.Run("Should write the whole run as yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.Nil(t, Write(&buf, Format_Yaml, failedRun()))

		decoded := &RunReport{}
		require.Nil(t, yaml.Unmarshal(buf.Bytes(), decoded))
		assert.Equal(t, "run-1", decoded.RunId)
		assert.Equal(t, "failed", decoded.Status)
		assert.Contains(t, decoded.Error, "b@x.com")
		assert.Equal(t, 2, decoded.Snapshot.Records)
		assert.Equal(t, 1, decoded.Snapshot.Inactive)
		assert.Len(t, decoded.Qualified, 2)
		assert.Equal(t, "70", decoded.Refill.RefillAmount)
		assert.Len(t, decoded.Operations, 3)
		assert.Equal(t, []string{"first", "second"}, decoded.Messages)
	})
	t.Run("Should write operation rows as csv", func(t *testing.T) {
		var buf bytes.Buffer
		require.Nil(t, Write(&buf, Format_Csv, failedRun()))

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 4)
		assert.Equal(t, "type,identity,value,to,amount,tx_hash,status", lines[0])

		rows := make([]*OperationRow, 0)
		require.Nil(t, gocsv.UnmarshalString(buf.String(), &rows))
		assert.Equal(t, OperationStatus_Failed, rows[1].Status)
	})
	t.Run("Should reject unknown formats", func(t *testing.T) {
		var buf bytes.Buffer
		assert.NotNil(t, Write(&buf, Format("xml"), failedRun()))

		_, err := ParseFormat("xml")
		assert.NotNil(t, err)
		format, err := ParseFormat("")
		assert.Nil(t, err)
		assert.Equal(t, Format_Yaml, format)
	})
	t.Run("Should write to a file, creating directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "reports", "run.csv")
		require.Nil(t, WriteFile(path, Format_Csv, failedRun()))

		contents, err := os.ReadFile(path)
		require.Nil(t, err)
		assert.True(t, strings.HasPrefix(string(contents), "type,identity"))
	})
}
