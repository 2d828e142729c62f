package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/ignite/mailchimp-clickmap/internal/clickmap"
)

// csvHeader is the output column order; downstream analysis scripts
// depend on it.
var csvHeader = []string{
	"campaign_id",
	"campaign_name",
	"order",
	"url",
	"total_clicks",
	"unique_clicks",
	"click_percentage",
	"unique_click_percentage",
}

// WriteCSV writes click-map records to w, one row per record, in the
// given (campaign-then-order) sequence.
func WriteCSV(w io.Writer, records []clickmap.Record) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	for _, r := range records {
		row := []string{
			r.CampaignID,
			r.CampaignName,
			strconv.Itoa(r.Order),
			r.URL,
			strconv.FormatInt(r.TotalClicks, 10),
			strconv.FormatInt(r.UniqueClicks, 10),
			strconv.FormatFloat(r.ClickPercentage, 'g', -1, 64),
			strconv.FormatFloat(r.UniqueClickPercentage, 'g', -1, 64),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteCSVFile writes click-map records to a file at path.
func WriteCSVFile(path string, records []clickmap.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating csv file: %w", err)
	}

	if err := WriteCSV(f, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
