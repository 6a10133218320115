package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/rohankatakam/changeminer/internal/models"
)

// DateLayout formats trash dates
const DateLayout = "2006-01-02 15:04:05-07:00"

var (
	methodHeader = []string{"Full_path", "Filename", "Method", "Changes", "ChgLines"}
	trashHeader  = []string{"Commit_hash", "Date", "Method", "Changes", "ChgLines"}
)

func newCSVWriter(w io.Writer) *csv.Writer {
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	return cw
}

// WriteMethods writes one row per live method. withPrevious adds the
// Previous_name column used after a checkpoint.
func WriteMethods(w io.Writer, rows []models.MethodRow, withPrevious bool) error {
	cw := newCSVWriter(w)

	header := methodHeader
	if withPrevious {
		header = append(append([]string(nil), methodHeader...), "Previous_name")
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, r := range rows {
		record := []string{r.FullPath, r.Filename, r.Method, strconv.Itoa(r.Changes), strconv.Itoa(r.ChgLines)}
		if withPrevious {
			record = append(record, r.PreviousName)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTrash writes one row per removed method
func WriteTrash(w io.Writer, rows []models.TrashRow) error {
	cw := newCSVWriter(w)
	if err := cw.Write(trashHeader); err != nil {
		return err
	}

	for _, r := range rows {
		record := []string{
			r.CommitHash,
			r.Date.Format(DateLayout),
			r.Method,
			strconv.Itoa(r.Changes),
			strconv.Itoa(r.ChgLines),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
