package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"letter-portal/logic/routing"
)

// LetterRepo 封装对 letter / signature 表的所有操作
type LetterRepo struct {
	db *gorm.DB
}

// NewLetterRepo 构造函数
func NewLetterRepo(db *gorm.DB) *LetterRepo {
	return &LetterRepo{db: db}
}

// CreateWithSignatures 在同一个事务里写入信件和全部签收行.
// sigs 的 SignatureID 会被回填.
func (r *LetterRepo) CreateWithSignatures(ctx context.Context, letter *Letter, sigs []Signature) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Letter{}).Where("letter_id = ?", letter.LetterID).Count(&count).Error; err != nil {
			return fmt.Errorf("check letter id: %w", err)
		}
		if count > 0 {
			return routing.Conflict("letter %q already exists", letter.LetterID)
		}

		if err := tx.Omit(clause.Associations).Create(letter).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return routing.Conflict("letter %q already exists", letter.LetterID)
			}
			return fmt.Errorf("create letter: %w", err)
		}

		for i := range sigs {
			sigs[i].LetterID = letter.LetterID
		}
		if err := tx.Omit(clause.Associations).Create(&sigs).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return routing.InvalidArgument("letter %q addresses the same unit twice", letter.LetterID)
			}
			return fmt.Errorf("create signatures: %w", err)
		}
		return nil
	})
}

// LoadLetter 读取信件及其全部签收行. postgres 下使用只读 REPEATABLE READ 事务,
// 两条查询看到同一个快照
func (r *LetterRepo) LoadLetter(ctx context.Context, letterID string) (*Letter, error) {
	var opts *sql.TxOptions
	if r.db.Dialector.Name() == DriverPostgres {
		opts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}

	var letter Letter
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Preload("Signatures", func(db *gorm.DB) *gorm.DB {
			return db.Order("signature_id ASC")
		}).
			Where("letter_id = ?", letterID).
			First(&letter).Error
	}, opts)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, routing.NotFound("letter %q does not exist", letterID)
		}
		return nil, fmt.Errorf("load letter: %w", err)
	}
	return &letter, nil
}

func listSignatures(db *gorm.DB, letterID string) ([]Signature, error) {
	var sigs []Signature
	err := db.Where("letter_id = ?", letterID).
		Order("signature_id ASC").
		Find(&sigs).Error
	if err != nil {
		return nil, fmt.Errorf("list signatures: %w", err)
	}
	return sigs, nil
}

// LetterFilter 列表查询条件, 空值表示不过滤
type LetterFilter struct {
	Status     routing.LetterStatus
	LetterType routing.LetterType
	Keyword    string
	Limit      int
	Offset     int
}

// likeEscaper 转义 LIKE 通配符, 关键字按字面匹配
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// ListLetters 按条件分页查询, 新信件在前
func (r *LetterRepo) ListLetters(ctx context.Context, f LetterFilter) ([]Letter, int64, error) {
	tx := r.db.WithContext(ctx).Model(&Letter{})
	if f.Status != "" {
		tx = tx.Where("status = ?", f.Status)
	}
	if f.LetterType != "" {
		tx = tx.Where("letter_type = ?", f.LetterType)
	}
	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		pattern := "%" + likeEscaper.Replace(kw) + "%"
		tx = tx.Where(`sender LIKE ? ESCAPE '\' OR recipient LIKE ? ESCAPE '\' OR subject LIKE ? ESCAPE '\'`,
			pattern, pattern, pattern)
	}

	// 新会话, Count 和 Find 各自克隆查询条件
	tx = tx.Session(&gorm.Session{})

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count letters: %w", err)
	}

	page := tx.Order("created_at DESC").Order("letter_id ASC")
	if f.Limit > 0 {
		page = page.Limit(f.Limit)
	}
	if f.Offset > 0 {
		page = page.Offset(f.Offset)
	}
	var letters []Letter
	err := page.Find(&letters).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list letters: %w", err)
	}
	return letters, total, nil
}

// InboxRow 某个单位名下的一条签收行, 带上信件主题
type InboxRow struct {
	SignatureID  int64                   `gorm:"column:signature_id"`
	LetterID     string                  `gorm:"column:letter_id"`
	DepartmentID *int64                  `gorm:"column:department_id"`
	DivisionID   *int64                  `gorm:"column:division_id"`
	DeputyID     *int64                  `gorm:"column:deputy_id"`
	Status       routing.SignatureStatus `gorm:"column:status"`
	Descriptions *string                 `gorm:"column:descriptions"`
	SignedDate   *time.Time              `gorm:"column:signed_date"`
	Subject      string                  `gorm:"column:subject"`
	Sender       string                  `gorm:"column:sender"`
	LetterStatus routing.LetterStatus    `gorm:"column:letter_status"`
}

func (r *InboxRow) Unit() (routing.Unit, error) {
	return routing.UnitFromColumns(r.DepartmentID, r.DivisionID, r.DeputyID)
}

// ListByUnit returns the signature rows addressed to unit, newest letter first.
func (r *LetterRepo) ListByUnit(ctx context.Context, unit routing.Unit, status routing.SignatureStatus) ([]InboxRow, error) {
	column, err := unitColumn(unit.Kind)
	if err != nil {
		return nil, err
	}

	tx := r.db.WithContext(ctx).
		Table("signature").
		Select("signature.signature_id, signature.letter_id, signature.department_id, signature.division_id, signature.deputy_id, signature.status, signature.descriptions, signature.signed_date, letter.subject, letter.sender, letter.status AS letter_status").
		Joins("JOIN letter ON letter.letter_id = signature.letter_id").
		Where("signature."+column+" = ?", unit.ID)
	if status != "" {
		tx = tx.Where("signature.status = ?", status)
	}

	var out []InboxRow
	if err := tx.Order("letter.created_at DESC").Order("signature.signature_id ASC").Scan(&out).Error; err != nil {
		return nil, fmt.Errorf("list signatures by unit: %w", err)
	}
	return out, nil
}

// ScanLetters 分批遍历所有信件及其签收行, 供定时审计使用
func (r *LetterRepo) ScanLetters(ctx context.Context, batchSize int, fn func(letter *Letter) error) error {
	var batch []Letter
	result := r.db.WithContext(ctx).
		Preload("Signatures", func(db *gorm.DB) *gorm.DB {
			return db.Order("signature_id ASC")
		}).
		Order("letter_id ASC").
		FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
			for i := range batch {
				if err := fn(&batch[i]); err != nil {
					return err
				}
			}
			return nil
		})
	if result.Error != nil {
		return fmt.Errorf("scan letters: %w", result.Error)
	}
	return nil
}

// WithLetter runs fn in one transaction holding the letter row. On postgres the
// row is locked FOR UPDATE so that every mutation of the same letter is
// serialized; SQLite already serializes writers. fn's error rolls back
// everything it wrote.
func (r *LetterRepo) WithLetter(ctx context.Context, letterID string, fn func(tx *LetterTx) error) error {
	return r.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		q := db
		if db.Dialector.Name() == DriverPostgres {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var letter Letter
		if err := q.Where("letter_id = ?", letterID).First(&letter).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return routing.NotFound("letter %q does not exist", letterID)
			}
			return fmt.Errorf("lock letter: %w", err)
		}
		return fn(&LetterTx{db: db, Letter: &letter})
	})
}

// LetterTx 事务内对单封信件的读写. 每次更新都以当前状态为条件,
// 条件不满足时返回可重试的 CONFLICT
type LetterTx struct {
	db     *gorm.DB
	Letter *Letter
}

// Signatures 在事务内重新读取全部签收行
func (t *LetterTx) Signatures() ([]Signature, error) {
	return listSignatures(t.db, t.Letter.LetterID)
}

// Signature reads one row of the locked letter.
func (t *LetterTx) Signature(signatureID int64) (*Signature, error) {
	var sig Signature
	err := t.db.Where("signature_id = ? AND letter_id = ?", signatureID, t.Letter.LetterID).First(&sig).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, routing.NotFound("signature %d does not belong to letter %q", signatureID, t.Letter.LetterID)
		}
		return nil, fmt.Errorf("get signature: %w", err)
	}
	return &sig, nil
}

// MarkArrived moves a NOT_ARRIVE row to ARRIVE.
func (t *LetterTx) MarkArrived(signatureID int64) error {
	return t.advance(signatureID, routing.SignatureNotArrive, routing.SignatureArrive, nil)
}

// MarkSigned moves an ARRIVE row to SIGNED and records the signer's notes.
func (t *LetterTx) MarkSigned(signatureID int64, descriptions string, signedAt time.Time) error {
	return t.advance(signatureID, routing.SignatureArrive, routing.SignatureSigned, map[string]interface{}{
		"descriptions": descriptions,
		"signed_date":  signedAt,
	})
}

// advance 把签收行从 from 推进到 to, 以 from 为更新条件
func (t *LetterTx) advance(signatureID int64, from, to routing.SignatureStatus, extra map[string]interface{}) error {
	if !from.CanAdvanceTo(to) {
		return fmt.Errorf("signature %d: illegal transition %s -> %s", signatureID, from, to)
	}
	values := map[string]interface{}{"status": to}
	for k, v := range extra {
		values[k] = v
	}
	result := t.db.Model(&Signature{}).
		Where("signature_id = ? AND letter_id = ? AND status = ?", signatureID, t.Letter.LetterID, from).
		Updates(values)
	return expectOne(result, "move signature %d to %s", signatureID, to)
}

// SetStatus changes the letter status, guarded on the status read when the
// transaction started.
func (t *LetterTx) SetStatus(status routing.LetterStatus) error {
	result := t.db.Model(&Letter{}).
		Where("letter_id = ? AND status = ?", t.Letter.LetterID, t.Letter.Status).
		Update("status", status)
	if err := expectOne(result, "set letter %q %s", t.Letter.LetterID, status); err != nil {
		return err
	}
	t.Letter.Status = status
	return nil
}

func expectOne(result *gorm.DB, format string, args ...any) error {
	if result.Error != nil {
		return fmt.Errorf(format+": %w", append(args, result.Error)...)
	}
	if result.RowsAffected != 1 {
		return routing.RetryableConflict(nil, format+": state changed concurrently", args...)
	}
	return nil
}

// IsRetryable reports storage errors that a retry of the whole transaction can
// resolve: postgres serialization failures, deadlocks and lock timeouts.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return true
		}
	}
	return false
}

func unitColumn(kind routing.UnitKind) (string, error) {
	switch kind {
	case routing.KindDepartment:
		return "department_id", nil
	case routing.KindDivision:
		return "division_id", nil
	case routing.KindDeputy:
		return "deputy_id", nil
	}
	return "", routing.InvalidArgument("unknown unit kind %q", string(kind))
}
