package optimizer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

// SaveResultsToCSV saves optimization results, in their current order, to a CSV file
func SaveResultsToCSV(results []*Result, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	return WriteResultsCSV(file, results)
}

// WriteResultsCSV writes one row per result with sorted parameter and metric columns
func WriteResultsCSV(w io.Writer, results []*Result) error {
	writer := csv.NewWriter(w)

	paramNames, metricNames := columns(results)

	header := []string{"rank"}
	header = append(header, paramNames...)
	header = append(header, metricNames...)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, result := range results {
		row := []string{strconv.Itoa(i + 1)}

		for _, name := range paramNames {
			row = append(row, formatValue(result.Parameters[name]))
		}

		for _, name := range metricNames {
			value, exists := result.Metrics[name]
			if !exists {
				row = append(row, "")
				continue
			}
			row = append(row, strconv.FormatFloat(value, 'f', 4, 64))
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// PrintResults renders the top N results as a table
func PrintResults(w io.Writer, results []*Result, targetMetric MetricName, topN int) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No results to display")
		return
	}

	if topN > 0 && topN < len(results) {
		results = results[:topN]
	}

	paramNames, _ := columns(results)

	table := tablewriter.NewWriter(w)
	table.SetHeader(append(append([]string{"Rank"}, paramNames...), string(targetMetric)))
	for i, result := range results {
		row := []string{strconv.Itoa(i + 1)}
		for _, name := range paramNames {
			row = append(row, formatValue(result.Parameters[name]))
		}
		row = append(row, fmt.Sprintf("%.4f", result.Metrics[string(targetMetric)]))
		table.Append(row)
	}
	table.Render()
}

// FormatParameterSet formats a parameter set as a string with sorted keys
func FormatParameterSet(params ParameterSet) string {
	names := lo.Keys(params)
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s: %s", name, formatValue(params[name]))
	}

	return "{" + strings.Join(parts, ", ") + "}"
}

func columns(results []*Result) ([]string, []string) {
	paramNames := make(map[string]bool)
	metricNames := make(map[string]bool)

	for _, result := range results {
		for name := range result.Parameters {
			paramNames[name] = true
		}
		for name := range result.Metrics {
			metricNames[name] = true
		}
	}

	params, metrics := lo.Keys(paramNames), lo.Keys(metricNames)
	sort.Strings(params)
	sort.Strings(metrics)
	return params, metrics
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
