package profile

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
)

// csvHeader is the flat tabular encoding of a RouteSpec. Column order is
// part of the interchange format.
var csvHeader = []string{"enabled", "target", "prefix_len", "gateway", "interface", "metric", "group", "description"}

func encodeCSV(routes []RouteSpec) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, s := range routes {
		rec := []string{
			strconv.FormatBool(s.Enabled),
			s.Target,
			strconv.Itoa(s.PrefixLen),
			s.Gateway,
			s.Interface,
			strconv.Itoa(s.Metric),
			s.Group,
			s.Description,
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func decodeCSV(data []byte) ([]RouteSpec, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = len(csvHeader)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing CSV profile: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty CSV profile")
	}
	if records[0][0] != csvHeader[0] || records[0][1] != csvHeader[1] {
		return nil, fmt.Errorf("CSV profile missing header row")
	}

	var routes []RouteSpec
	for i, rec := range records[1:] {
		enabled, err := strconv.ParseBool(rec[0])
		if err != nil {
			return nil, fmt.Errorf("CSV row %d: bad enabled flag %q", i+2, rec[0])
		}
		prefixLen, err := strconv.Atoi(rec[2])
		if err != nil {
			return nil, fmt.Errorf("CSV row %d: bad prefix length %q", i+2, rec[2])
		}
		metric, err := strconv.Atoi(rec[5])
		if err != nil {
			return nil, fmt.Errorf("CSV row %d: bad metric %q", i+2, rec[5])
		}
		routes = append(routes, RouteSpec{
			Enabled:     enabled,
			Target:      rec[1],
			PrefixLen:   prefixLen,
			Gateway:     rec[3],
			Interface:   rec[4],
			Metric:      metric,
			Group:       rec[6],
			Description: rec[7],
		})
	}
	return routes, nil
}
