package postgres

import (
	"time"

	"letter-portal/logic/routing"
)

// Letter 对应数据库里的 letter 表
type Letter struct {
	// LetterID 由外部系统分配, 不使用自增 ID
	LetterID   string               `gorm:"column:letter_id;primaryKey;type:varchar(64)"`
	Sender     string               `gorm:"column:sender;type:varchar(255);not null;index"`
	Recipient  string               `gorm:"column:recipient;type:varchar(255);not null;index"`
	Subject    string               `gorm:"column:subject;type:text;not null"`
	LetterType routing.LetterType   `gorm:"column:letter_type;type:varchar(20);not null;index"`
	Status     routing.LetterStatus `gorm:"column:status;type:varchar(20);not null;default:'ON_PROGRESS';index"`
	CreatedAt  time.Time            `gorm:"column:created_at;not null;index"`
	UpdatedAt  time.Time            `gorm:"column:updated_at"`

	Signatures []Signature `gorm:"foreignKey:LetterID;references:LetterID;constraint:OnDelete:CASCADE"`
}

// TableName 强制指定表名
func (Letter) TableName() string {
	return "letter"
}

// Signature 签收台账, 每封信的每个目标单位一行
type Signature struct {
	SignatureID int64  `gorm:"column:signature_id;primaryKey;autoIncrement"`
	LetterID    string `gorm:"column:letter_id;type:varchar(64);not null;index;uniqueIndex:idx_signature_letter_department;uniqueIndex:idx_signature_letter_division;uniqueIndex:idx_signature_letter_deputy"`

	// 三选一, 由 chk_signature_one_unit 约束保证只有一个非空
	DepartmentID *int64 `gorm:"column:department_id;index;uniqueIndex:idx_signature_letter_department;check:chk_signature_one_unit,(CASE WHEN department_id IS NULL THEN 0 ELSE 1 END + CASE WHEN division_id IS NULL THEN 0 ELSE 1 END + CASE WHEN deputy_id IS NULL THEN 0 ELSE 1 END) = 1"`
	DivisionID   *int64 `gorm:"column:division_id;index;uniqueIndex:idx_signature_letter_division"`
	DeputyID     *int64 `gorm:"column:deputy_id;index;uniqueIndex:idx_signature_letter_deputy"`

	Status       routing.SignatureStatus `gorm:"column:status;type:varchar(20);not null;default:'NOT_ARRIVE';index"`
	Descriptions *string                 `gorm:"column:descriptions;type:text"`
	SignedDate   *time.Time              `gorm:"column:signed_date"`

	Department *Department `gorm:"foreignKey:DepartmentID;references:ID"`
	Division   *Division   `gorm:"foreignKey:DivisionID;references:ID"`
	Deputy     *Deputy     `gorm:"foreignKey:DeputyID;references:ID"`
}

func (Signature) TableName() string {
	return "signature"
}

// NewSignature builds an unsaved NOT_ARRIVE row addressed to unit.
func NewSignature(unit routing.Unit) Signature {
	dep, div, dpt := unit.Columns()
	return Signature{
		DepartmentID: dep,
		DivisionID:   div,
		DeputyID:     dpt,
		Status:       routing.SignatureNotArrive,
	}
}

// Unit rebuilds the addressed unit from the three nullable columns.
func (s *Signature) Unit() (routing.Unit, error) {
	return routing.UnitFromColumns(s.DepartmentID, s.DivisionID, s.DeputyID)
}

// Row 转换为状态机视图
func (s *Signature) Row() (routing.Row, error) {
	unit, err := s.Unit()
	if err != nil {
		return routing.Row{}, err
	}
	return routing.Row{ID: s.SignatureID, Unit: unit, Status: s.Status}, nil
}

// Rows converts a letter's signatures for the state machine.
func Rows(sigs []Signature) ([]routing.Row, error) {
	out := make([]routing.Row, 0, len(sigs))
	for i := range sigs {
		r, err := sigs[i].Row()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

type Department struct {
	ID   int64  `gorm:"column:id;primaryKey;autoIncrement:false" json:"id" yaml:"id"`
	Name string `gorm:"column:name;type:varchar(255);not null" json:"name" yaml:"name"`
}

func (Department) TableName() string { return "department" }

type Division struct {
	ID   int64  `gorm:"column:id;primaryKey;autoIncrement:false" json:"id" yaml:"id"`
	Name string `gorm:"column:name;type:varchar(255);not null" json:"name" yaml:"name"`
}

func (Division) TableName() string { return "division" }

type Deputy struct {
	ID   int64  `gorm:"column:id;primaryKey;autoIncrement:false" json:"id" yaml:"id"`
	Name string `gorm:"column:name;type:varchar(255);not null" json:"name" yaml:"name"`
}

func (Deputy) TableName() string { return "deputy" }
