package routing

import (
	"fmt"
	"strings"
)

// UnitKind 被寻址的组织单元类型
type UnitKind string

const (
	KindDepartment UnitKind = "department"
	KindDivision   UnitKind = "division"
	KindDeputy     UnitKind = "deputy"
)

// ParseKind accepts the kind names used in paths and request bodies, case-insensitively.
func ParseKind(s string) (UnitKind, error) {
	switch UnitKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindDepartment:
		return KindDepartment, nil
	case KindDivision:
		return KindDivision, nil
	case KindDeputy:
		return KindDeputy, nil
	}
	return "", InvalidArgument("unknown unit kind %q", s)
}

func (k UnitKind) Valid() bool {
	return k == KindDepartment || k == KindDivision || k == KindDeputy
}

// Unit is the addressed unit of a signature row: exactly one of department,
// division or deputy, identified by its directory id.
type Unit struct {
	Kind UnitKind `json:"kind"`
	ID   int64    `json:"id"`
}

func Department(id int64) Unit { return Unit{Kind: KindDepartment, ID: id} }
func Division(id int64) Unit { return Unit{Kind: KindDivision, ID: id} }
func Deputy(id int64) Unit { return Unit{Kind: KindDeputy, ID: id} }

func (u Unit) String() string {
	return fmt.Sprintf("%s:%d", u.Kind, u.ID)
}

func (u Unit) Validate() error {
	if !u.Kind.Valid() {
		return InvalidArgument("unknown unit kind %q", string(u.Kind))
	}
	if u.ID <= 0 {
		return InvalidArgument("unit id must be positive, got %d", u.ID)
	}
	return nil
}

// Columns splits the unit into the three nullable foreign key columns of the
// signature table. Exactly one of the returned pointers is non-nil.
func (u Unit) Columns() (department, division, deputy *int64) {
	id := u.ID
	switch u.Kind {
	case KindDepartment:
		department = &id
	case KindDivision:
		division = &id
	case KindDeputy:
		deputy = &id
	}
	return department, division, deputy
}

// UnitFromColumns rebuilds the unit from the signature table columns.
// It fails unless exactly one column is set.
func UnitFromColumns(department, division, deputy *int64) (Unit, error) {
	var (
		unit Unit
		set  int
	)
	if department != nil {
		unit, set = Department(*department), set+1
	}
	if division != nil {
		unit, set = Division(*division), set+1
	}
	if deputy != nil {
		unit, set = Deputy(*deputy), set+1
	}
	if set != 1 {
		return Unit{}, fmt.Errorf("signature row addresses %d units, want exactly 1", set)
	}
	return unit, nil
}
