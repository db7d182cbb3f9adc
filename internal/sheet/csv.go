package sheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteCSV はテーブルを見出し付きのCSVとして書き出す。
func WriteCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(r); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV はCSVを読み込み、1行目を見出し、残りをデータ行として返す。
// 空の入力は見出しなしの空テーブルとして扱う。
func ReadCSV(r io.Reader) (header []string, rows [][]string, err error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}
	return records[0], records[1:], nil
}

// LoadDir はdir配下の<テーブル名>.csvをワークブックに取り込む。
// 存在しないファイルは無視する。取り込んだテーブル名を返す。
func LoadDir(wb *Workbook, dir string, schemas []Schema) ([]string, error) {
	var loaded []string
	for _, s := range schemas {
		path := filepath.Join(dir, s.Name+".csv")
		f, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return loaded, fmt.Errorf("failed to open %s: %w", path, err)
		}
		header, rows, err := ReadCSV(f)
		f.Close()
		if err != nil {
			return loaded, fmt.Errorf("failed to load %s: %w", path, err)
		}
		wb.Put(s.Name, header, rows)
		loaded = append(loaded, s.Name)
	}
	return loaded, nil
}
