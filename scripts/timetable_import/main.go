package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

type item struct {
	AssignmentID string  `json:"assignment_id"`
	Day          string  `json:"day"`
	StartTime    string  `json:"start_time"`
	EndTime      string  `json:"end_time"`
	Room         *string `json:"room,omitempty"`
	Note         *string `json:"note,omitempty"`
}

type batch struct {
	Items          []item `json:"items"`
	PartialOnError bool   `json:"partial_on_error"`
}

type rejection struct {
	Index   int    `json:"index"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details"`
}

type envelope struct {
	Data struct {
		Created  []json.RawMessage `json:"created"`
		Rejected []rejection       `json:"rejected"`
	} `json:"data"`
	Error *apiError `json:"error"`
}

type result struct {
	Status   int
	Created  int
	Rejected []rejection
	Error    *apiError
	Duration time.Duration
}

func main() {
	var (
		base    string
		prefix  string
		input   string
		partial bool
		timeout time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "Timetable API base URL")
	flag.StringVar(&prefix, "prefix", "/api/v1", "API prefix")
	flag.StringVar(&input, "file", "", "Path to a JSON file holding an array of entries or a {items, partial_on_error} object")
	flag.BoolVar(&partial, "partial", false, "Keep valid entries when others are rejected")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "HTTP client timeout")
	flag.Parse()

	if input == "" {
		log.Fatal("-file is required")
	}

	data, err := os.ReadFile(input)
	if err != nil {
		log.Fatalf("failed to read %s: %v", input, err)
	}
	b, err := parseBatch(data)
	if err != nil {
		log.Fatalf("failed to parse %s: %v", input, err)
	}
	if partial {
		b.PartialOnError = true
	}

	client := &http.Client{Timeout: timeout}
	res, err := submit(client, strings.TrimRight(base, "/")+prefix+"/schedules/bulk", b)
	if err != nil {
		log.Fatalf("bulk import failed: %v", err)
	}

	printReport(os.Stdout, b, res)
	if res.Error != nil || len(res.Rejected) > 0 {
		os.Exit(1)
	}
}

func parseBatch(data []byte) (batch, error) {
	var b batch
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &b.Items); err != nil {
			return batch{}, err
		}
	} else if err := json.Unmarshal(trimmed, &b); err != nil {
		return batch{}, err
	}
	if len(b.Items) == 0 {
		return batch{}, errors.New("no entries defined")
	}
	return b, nil
}

func submit(client *http.Client, url string, b batch) (result, error) {
	payload, err := json.Marshal(b)
	if err != nil {
		return result{}, err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return result{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return result{}, fmt.Errorf("read body: %w", err)
	}
	return decodeResult(resp.StatusCode, body, time.Since(start))
}

func decodeResult(status int, body []byte, duration time.Duration) (result, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return result{}, fmt.Errorf("decode response (status %d): %w", status, err)
	}
	return result{
		Status:   status,
		Created:  len(env.Data.Created),
		Rejected: env.Data.Rejected,
		Error:    env.Error,
		Duration: duration,
	}, nil
}

func printReport(w io.Writer, b batch, res result) {
	fmt.Fprintln(w, "Timetable Import Report")
	fmt.Fprintln(w, "=======================")
	fmt.Fprintf(w, "Status: %d (%s)\n", res.Status, res.Duration)
	if res.Error != nil {
		fmt.Fprintf(w, "Batch rejected: %s %s\n", res.Error.Code, res.Error.Message)
		if idx, ok := res.Error.Details["index"]; ok {
			fmt.Fprintf(w, "  Failing item: %v\n", idx)
		}
		return
	}
	fmt.Fprintf(w, "Created: %d of %d\n", res.Created, len(b.Items))
	for _, r := range res.Rejected {
		label := fmt.Sprintf("#%d", r.Index)
		if r.Index >= 0 && r.Index < len(b.Items) {
			it := b.Items[r.Index]
			label = fmt.Sprintf("#%d %s %s %s-%s", r.Index, it.AssignmentID, it.Day, it.StartTime, it.EndTime)
		}
		fmt.Fprintf(w, "[%s] %s: %s\n", r.Code, label, r.Message)
	}
}
