// Package status generates the last-run summary for aswin.
//
// Every solve writes a small JSON status file so editors, shell prompts or
// watch loops can show the outcome without opening the run store.
package status

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/corey/aswin/internal/ports"
)

// StatusFile is the filename within the .aswin directory where status JSON is written.
const StatusFile = "status.json"

// Result values.
const (
	ResultWinning = "winning"
	ResultLosing  = "losing"
	ResultFailed  = "failed"
)

// StatusData is the JSON payload written after each solve.
type StatusData struct {
	Model         string   `json:"model"`
	Automaton     string   `json:"automaton,omitempty"`
	RunID         string   `json:"run_id,omitempty"`
	Result        string   `json:"result"`
	Nodes         int      `json:"nodes"`
	WinningNodes  int      `json:"winning_nodes"`
	WinningStates int      `json:"winning_states"`
	TopStates     []string `json:"top_states,omitempty"`
	ElapsedMs     int64    `json:"elapsed_ms"`
	Warnings      []string `json:"warnings,omitempty"`
	Error         string   `json:"error,omitempty"`
	UpdatedAt     int64    `json:"updated_at"`
}

// Generate produces a StatusData from a finished run.
func Generate(run *ports.Run, warnings []string) *StatusData {
	sd := &StatusData{
		Model:         run.Model,
		Automaton:     run.Automaton,
		RunID:         run.ID,
		Result:        ResultLosing,
		Nodes:         run.Nodes,
		WinningNodes:  len(run.WinningNodes),
		WinningStates: len(run.WinningStates),
		TopStates:     topStates(run.WinningStates, 3),
		ElapsedMs:     run.Elapsed.Milliseconds(),
		Warnings:      warnings,
		UpdatedAt:     run.CreatedAt.Unix(),
	}
	if run.InitialWinning {
		sd.Result = ResultWinning
	}
	return sd
}

// Failed produces a StatusData for a solve that returned an error.
func Failed(model string, err error, at int64) *StatusData {
	return &StatusData{
		Model:     model,
		Result:    ResultFailed,
		Error:     err.Error(),
		UpdatedAt: at,
	}
}

// WriteJSON writes the status data as JSON to a file.
func WriteJSON(path string, data *StatusData) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// ReadJSON loads a status file. Returns nil, nil if it does not exist.
func ReadJSON(path string) (*StatusData, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sd StatusData
	if err := json.Unmarshal(b, &sd); err != nil {
		return nil, err
	}
	return &sd, nil
}

// topStates returns the first n winning state names in sorted order.
func topStates(states []string, n int) []string {
	if len(states) == 0 {
		return nil
	}
	sorted := append([]string(nil), states...)
	sort.Strings(sorted)

	limit := n
	if limit > len(sorted) {
		limit = len(sorted)
	}
	return sorted[:limit]
}
