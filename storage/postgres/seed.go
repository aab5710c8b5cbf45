package postgres

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadDirectorySeed 读取组织架构 YAML 文件:
//
//	departments:
//	  - {id: 10, name: Finance}
//	divisions:
//	  - {id: 20, name: Procurement}
//	deputies:
//	  - {id: 30, name: Deputy of Operations}
func LoadDirectorySeed(path string) (*DirectorySeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed DirectorySeed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	if err := seed.validate(); err != nil {
		return nil, fmt.Errorf("seed file %s: %w", path, err)
	}
	return &seed, nil
}

func (s *DirectorySeed) validate() error {
	check := func(kind string, id int64, name string) error {
		if id <= 0 {
			return fmt.Errorf("%s id must be positive, got %d", kind, id)
		}
		if name == "" {
			return fmt.Errorf("%s %d has no name", kind, id)
		}
		return nil
	}
	for _, d := range s.Departments {
		if err := check("department", d.ID, d.Name); err != nil {
			return err
		}
	}
	for _, d := range s.Divisions {
		if err := check("division", d.ID, d.Name); err != nil {
			return err
		}
	}
	for _, d := range s.Deputies {
		if err := check("deputy", d.ID, d.Name); err != nil {
			return err
		}
	}
	return nil
}
