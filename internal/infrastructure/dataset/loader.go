// Package dataset loads labeled evaluation examples from JSONL or XLSX
// files and validates that every referenced document exists in the corpus.
package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/rag-evalkit/internal/core/domain"
)

func Load(path string) ([]domain.EvaluationExample, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl":
		return loadJSONL(path)
	case ".xlsx":
		return loadXLSX(path)
	default:
		return nil, domain.WrapError(domain.ErrInvalidConfig, "load dataset", fmt.Errorf("unsupported dataset format %q", filepath.Ext(path)))
	}
}

// ValidateAgainstCorpus rejects example sets referencing documents the
// corpus does not hold; such labels would silently depress every metric.
func ValidateAgainstCorpus(examples []domain.EvaluationExample, corpus *domain.Corpus) error {
	for i, example := range examples {
		if _, ok := corpus.Get(example.RefDocID); !ok {
			return domain.WrapError(domain.ErrInvalidConfig, "validate dataset",
				fmt.Errorf("example %d references unknown document %q", i, example.RefDocID))
		}
	}
	return nil
}

func loadJSONL(path string) ([]domain.EvaluationExample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidConfig, "load dataset", err)
	}
	defer f.Close()

	examples := make([]domain.EvaluationExample, 0)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var example domain.EvaluationExample
		if err := json.Unmarshal([]byte(text), &example); err != nil {
			return nil, domain.WrapError(domain.ErrInvalidConfig, "load dataset", fmt.Errorf("line %d: %w", line, err))
		}
		if err := requireFields(example); err != nil {
			return nil, domain.WrapError(domain.ErrInvalidConfig, "load dataset", fmt.Errorf("line %d: %w", line, err))
		}
		examples = append(examples, example)
	}
	if err := scanner.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidConfig, "load dataset", err)
	}
	return examples, nil
}

func loadXLSX(path string) ([]domain.EvaluationExample, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidConfig, "load dataset", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidConfig, "load dataset", fmt.Errorf("read sheet %q: %w", sheet, err))
	}
	if len(rows) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidConfig, "load dataset", fmt.Errorf("sheet %q is empty", sheet))
	}

	columns, err := mapHeaderColumns(rows[0])
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidConfig, "load dataset", err)
	}

	examples := make([]domain.EvaluationExample, 0, len(rows)-1)
	for i, row := range rows[1:] {
		example := domain.EvaluationExample{
			Question:          cellAt(row, columns["question"]),
			RefDocID:          cellAt(row, columns["ref_doc_id"]),
			GroundTruthAnswer: cellAt(row, columns["ground_truth_answer"]),
		}
		if example.Question == "" && example.RefDocID == "" {
			continue
		}
		if err := requireFields(example); err != nil {
			return nil, domain.WrapError(domain.ErrInvalidConfig, "load dataset", fmt.Errorf("row %d: %w", i+2, err))
		}
		examples = append(examples, example)
	}
	return examples, nil
}

func mapHeaderColumns(header []string) (map[string]int, error) {
	columns := map[string]int{
		"question":            -1,
		"ref_doc_id":          -1,
		"ground_truth_answer": -1,
	}
	for i, cell := range header {
		name := strings.ToLower(strings.TrimSpace(cell))
		if _, known := columns[name]; known {
			columns[name] = i
		}
	}
	if columns["question"] < 0 || columns["ref_doc_id"] < 0 {
		return nil, fmt.Errorf("header must contain question and ref_doc_id columns, got %v", header)
	}
	return columns, nil
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func requireFields(example domain.EvaluationExample) error {
	if strings.TrimSpace(example.Question) == "" {
		return fmt.Errorf("example missing question")
	}
	if strings.TrimSpace(example.RefDocID) == "" {
		return fmt.Errorf("example missing ref_doc_id")
	}
	return nil
}
