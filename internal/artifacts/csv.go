package artifacts

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/arrowlake/numerion/internal/marketdata"
)

func decodeBarsCSV(data []byte) ([]marketdata.Kline, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !scanner.Scan() {
		return nil, nil
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("artifacts: read header: %w", err)
	}

	var rows []marketdata.Kline
	lineNo := 1
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != 7 {
			return nil, fmt.Errorf("artifacts: bars csv line %d has %d fields, want 7", lineNo, len(fields))
		}
		k, err := decodeBarRow(fields)
		if err != nil {
			return nil, fmt.Errorf("artifacts: bars csv line %d: %w", lineNo, err)
		}
		rows = append(rows, k)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("artifacts: scan bars csv: %w", err)
	}
	return rows, nil
}

func decodeBarRow(fields []string) (marketdata.Kline, error) {
	openTime, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return marketdata.Kline{}, fmt.Errorf("open_time: %w", err)
	}
	open, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return marketdata.Kline{}, fmt.Errorf("open: %w", err)
	}
	high, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return marketdata.Kline{}, fmt.Errorf("high: %w", err)
	}
	low, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return marketdata.Kline{}, fmt.Errorf("low: %w", err)
	}
	closePrice, err := strconv.ParseFloat(fields[4], 64)
	if err != nil {
		return marketdata.Kline{}, fmt.Errorf("close: %w", err)
	}
	volume, err := strconv.ParseFloat(fields[5], 64)
	if err != nil {
		return marketdata.Kline{}, fmt.Errorf("volume: %w", err)
	}
	closeTime, err := strconv.ParseInt(fields[6], 10, 64)
	if err != nil {
		return marketdata.Kline{}, fmt.Errorf("close_time: %w", err)
	}
	return marketdata.Kline{
		OpenTimeMs:  openTime,
		Open:        open,
		High:        high,
		Low:         low,
		Close:       closePrice,
		Volume:      volume,
		CloseTimeMs: closeTime,
	}, nil
}
