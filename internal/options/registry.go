// Package options はクライアント・プロバイダー双方のフォームで共有する選択肢の正規定義を提供する。
// UIのチェックボックスラベルと保存テーブルの列見出しは、すべてこのレジストリから導出する。
package options

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed options.yaml
var defaultDocument []byte

// Registry は選択肢リストの集合を表す。各リストの順序は表示順かつ列順である。
// 生成後は読み取り専用として扱い、複数goroutineから共有してよい。
type Registry struct {
	Specialties         []string `yaml:"specialties" json:"specialties"`
	AgeGroups           []string `yaml:"age_groups" json:"ageGroups"`
	TreatmentApproaches []string `yaml:"treatment_approaches" json:"treatmentApproaches"`
	Languages           []string `yaml:"languages" json:"languages"`
	ServiceFormats      []string `yaml:"service_formats" json:"serviceFormats"`
	InsuranceOptions    []string `yaml:"insurance_options" json:"insuranceOptions"`
	SupportTypes        []string `yaml:"support_types" json:"supportTypes"`
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default は埋め込みYAMLから読み込んだ既定のレジストリを返す。
// 埋め込み文書が不正な場合はビルド不備のためpanicする。
func Default() *Registry {
	defaultOnce.Do(func() {
		reg, err := Parse(defaultDocument)
		if err != nil {
			panic(fmt.Sprintf("embedded options document is invalid: %v", err))
		}
		defaultRegistry = reg
	})
	return defaultRegistry
}

// Load はpathのYAML文書からレジストリを読み込む。pathが空の場合はDefaultを返す。
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read options file: %w", err)
	}
	return Parse(data)
}

// Parse はYAML文書をパースし、検証済みのレジストリを返す。
// 空のリストと、同一リスト内の重複値はエラーとする。
// 異なるリスト間の重複（languagesとinsurance_optionsの"Other"など）は許容する。
func Parse(data []byte) (*Registry, error) {
	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("failed to parse options document: %w", err)
	}
	if err := reg.validate(); err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *Registry) validate() error {
	lists := []struct {
		name   string
		values []string
	}{
		{"specialties", r.Specialties},
		{"age_groups", r.AgeGroups},
		{"treatment_approaches", r.TreatmentApproaches},
		{"languages", r.Languages},
		{"service_formats", r.ServiceFormats},
		{"insurance_options", r.InsuranceOptions},
		{"support_types", r.SupportTypes},
	}
	for _, l := range lists {
		if len(l.values) == 0 {
			return fmt.Errorf("options list %q is empty", l.name)
		}
		seen := make(map[string]struct{}, len(l.values))
		for _, v := range l.values {
			if v == "" {
				return fmt.Errorf("options list %q contains an empty value", l.name)
			}
			if _, dup := seen[v]; dup {
				return fmt.Errorf("options list %q contains duplicate value %q", l.name, v)
			}
			seen[v] = struct{}{}
		}
	}
	return nil
}

// Canonicalize はselectedのうちallに含まれる値だけを、allの順序で重複なく返す。
// 未知の値はdroppedとして別に返す。
func Canonicalize(all, selected []string) (kept []string, dropped []string) {
	chosen := make(map[string]bool, len(selected))
	for _, s := range selected {
		chosen[s] = true
	}
	kept = make([]string, 0, len(selected))
	for _, v := range all {
		if chosen[v] {
			kept = append(kept, v)
			delete(chosen, v)
		}
	}
	for _, s := range selected {
		if chosen[s] {
			dropped = append(dropped, s)
			delete(chosen, s)
		}
	}
	return kept, dropped
}

// Contains はvaluesにvが含まれるかを返す。
func Contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
