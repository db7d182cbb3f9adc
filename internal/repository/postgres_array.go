package repository

import (
	"database/sql/driver"

	"github.com/lib/pq"
)

// textArray はtext[]列へ書き込む値を返す。
// nilスライスはNULLではなく空配列として書き込む。
func textArray(values []string) driver.Valuer {
	if values == nil {
		values = []string{}
	}
	return pq.StringArray(values)
}

// scanTextArray はtext[]列を読み込むためのScan先を返す。
func scanTextArray(dst *[]string) *pq.StringArray {
	return (*pq.StringArray)(dst)
}
