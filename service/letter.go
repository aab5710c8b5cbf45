package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"letter-portal/logic/routing"
	"letter-portal/pkg/metrics"
	"letter-portal/storage/postgres"
	"letter-portal/types"
	"letter-portal/vars"
)

// Directory 组织架构解析 (外部协作方)
type Directory interface {
	ResolveAll(ctx context.Context, units []routing.Unit) (map[routing.Unit]string, error)
}

type LetterService struct {
	repo      *postgres.LetterRepo
	directory Directory
	locker    *LetterLocker
	logger    *zap.Logger
	metrics   *metrics.MetricsCollector
	txTimeout time.Duration
	now       func() time.Time
}

// 构造函数：依赖注入
func NewLetterService(repo *postgres.LetterRepo, directory Directory, logger *zap.Logger, mc *metrics.MetricsCollector, txTimeout time.Duration) *LetterService {
	return &LetterService{
		repo:      repo,
		directory: directory,
		locker:    NewLetterLocker(),
		logger:    logger.With(zap.String("service", "letter_service")),
		metrics:   mc,
		txTimeout: txTimeout,
		now:       time.Now,
	}
}

// CreateLetterInput 登记信件的输入
type CreateLetterInput struct {
	LetterID   string
	Sender     string
	Recipient  string
	Subject    string
	LetterType routing.LetterType
	Targets    []routing.Unit
}

func (in *CreateLetterInput) normalize() error {
	in.LetterID = strings.TrimSpace(in.LetterID)
	in.Sender = strings.TrimSpace(in.Sender)
	in.Recipient = strings.TrimSpace(in.Recipient)
	in.Subject = strings.TrimSpace(in.Subject)

	switch {
	case in.LetterID == "":
		return routing.InvalidArgument("letter_id is required")
	case len(in.LetterID) > 64:
		return routing.InvalidArgument("letter_id is longer than 64 characters")
	case in.Sender == "":
		return routing.InvalidArgument("sender is required")
	case in.Recipient == "":
		return routing.InvalidArgument("recipient is required")
	case in.Subject == "":
		return routing.InvalidArgument("subject is required")
	case !in.LetterType.Valid():
		return routing.InvalidArgument("letter_type must be %s or %s, got %q",
			routing.LetterInternal, routing.LetterExternal, string(in.LetterType))
	}
	return routing.ValidateTargets(in.Targets)
}

// CreateLetter 登记信件并为每个目标单位生成一条 NOT_ARRIVE 签收行, 整体原子写入
func (s *LetterService) CreateLetter(ctx context.Context, in CreateLetterInput) (*types.LetterDetail, error) {
	start := time.Now()
	if err := in.normalize(); err != nil {
		return nil, s.reject(ctx, "create_letter", in.LetterID, err)
	}

	names, err := s.directory.ResolveAll(ctx, in.Targets)
	if err != nil {
		return nil, s.reject(ctx, "create_letter", in.LetterID, err)
	}

	letter := &postgres.Letter{
		LetterID:   in.LetterID,
		Sender:     in.Sender,
		Recipient:  in.Recipient,
		Subject:    in.Subject,
		LetterType: in.LetterType,
		Status:     routing.LetterOnProgress,
		CreatedAt:  s.now(),
	}
	sigs := make([]postgres.Signature, 0, len(in.Targets))
	for _, u := range in.Targets {
		sigs = append(sigs, postgres.NewSignature(u))
	}

	txCtx, cancel := s.txContext(ctx)
	defer cancel()
	if err := s.repo.CreateWithSignatures(txCtx, letter, sigs); err != nil {
		return nil, s.reject(ctx, "create_letter", in.LetterID, s.translate(txCtx, in.LetterID, err))
	}

	s.metrics.IncrementCounter("letters_created", string(in.LetterType))
	s.metrics.ObserveLatency("create_letter", time.Since(start))
	s.log(ctx).Info("Letter registered",
		zap.String("letter_id", in.LetterID),
		zap.Int("targets", len(sigs)))

	letter.Signatures = sigs
	return toDetail(letter, names)
}

// SignInput 签收并转交的输入
type SignInput struct {
	SignatureID  int64
	Descriptions string
	Destination  *routing.Unit
}

// SignAndForward 签收当前持有行, 同时把信件交给目的单位, 然后重新计算信件是否完成.
// 所有前置条件不满足时不做任何修改.
func (s *LetterService) SignAndForward(ctx context.Context, letterID string, in SignInput) (*types.SignatureView, error) {
	start := time.Now()
	req := routing.SignRequest{
		SignatureID:  in.SignatureID,
		Descriptions: strings.TrimSpace(in.Descriptions),
		Destination:  in.Destination,
	}
	if err := req.Validate(); err != nil {
		return nil, s.reject(ctx, "sign_and_forward", letterID, err)
	}

	var (
		signed   postgres.Signature
		plan     routing.SignPlan
		finished bool
	)
	err := s.withLetter(ctx, letterID, func(tx *postgres.LetterTx) error {
		sigs, err := tx.Signatures()
		if err != nil {
			return err
		}
		rows, err := postgres.Rows(sigs)
		if err != nil {
			return err
		}
		if plan, err = routing.PlanSign(tx.Letter.Status, rows, req); err != nil {
			return err
		}

		// 先到达目的单位再签收, 两步在同一事务内提交
		if plan.Destination != nil {
			if err := tx.MarkArrived(plan.Destination.ID); err != nil {
				return err
			}
		}
		if err := tx.MarkSigned(plan.Signer.ID, req.Descriptions, s.now()); err != nil {
			return err
		}

		after, err := tx.Signatures()
		if err != nil {
			return err
		}
		afterRows, err := postgres.Rows(after)
		if err != nil {
			return err
		}
		if routing.Completed(afterRows) {
			if err := tx.SetStatus(routing.LetterFinish); err != nil {
				return err
			}
			finished = true
		}
		for i := range after {
			if after[i].SignatureID == plan.Signer.ID {
				signed = after[i]
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.reject(ctx, "sign_and_forward", letterID, err)
	}

	s.metrics.IncrementCounter("signatures_signed", "")
	s.metrics.ObserveLatency("sign_and_forward", time.Since(start))
	fields := []zap.Field{
		zap.String("letter_id", letterID),
		zap.Int64("signature_id", plan.Signer.ID),
		zap.Stringer("unit", plan.Signer.Unit),
		zap.Bool("finished", finished),
	}
	if plan.Destination != nil {
		fields = append(fields, zap.Stringer("forwarded_to", plan.Destination.Unit))
	}
	s.log(ctx).Info("Signature signed", fields...)
	if finished {
		s.metrics.IncrementCounter("letters_finished", "")
	}

	view, err := toSignatureView(&signed, "")
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// Dispatch 首次分发: 在还没有任何签收之前, 把信件直接交到某个单位
func (s *LetterService) Dispatch(ctx context.Context, letterID string, signatureID int64) (*types.SignatureView, error) {
	var arrived *postgres.Signature
	err := s.withLetter(ctx, letterID, func(tx *postgres.LetterTx) error {
		sigs, err := tx.Signatures()
		if err != nil {
			return err
		}
		rows, err := postgres.Rows(sigs)
		if err != nil {
			return err
		}
		row, err := routing.PlanDispatch(tx.Letter.Status, rows, signatureID)
		if err != nil {
			return err
		}
		if err := tx.MarkArrived(row.ID); err != nil {
			return err
		}
		arrived, err = tx.Signature(row.ID)
		return err
	})
	if err != nil {
		return nil, s.reject(ctx, "dispatch", letterID, err)
	}

	s.metrics.IncrementCounter("signatures_dispatched", "")
	s.log(ctx).Info("Letter dispatched",
		zap.String("letter_id", letterID),
		zap.Int64("signature_id", signatureID))

	view, err := toSignatureView(arrived, "")
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// HideLetter 管理员隐藏信件, 只对 ON_PROGRESS 的信件生效
func (s *LetterService) HideLetter(ctx context.Context, letterID string) (*types.LetterView, error) {
	var letter postgres.Letter
	err := s.withLetter(ctx, letterID, func(tx *postgres.LetterTx) error {
		if err := routing.PlanHide(tx.Letter.Status); err != nil {
			return err
		}
		if err := tx.SetStatus(routing.LetterHide); err != nil {
			return err
		}
		letter = *tx.Letter
		return nil
	})
	if err != nil {
		return nil, s.reject(ctx, "hide_letter", letterID, err)
	}

	s.metrics.IncrementCounter("letters_hidden", "")
	s.log(ctx).Info("Letter hidden", zap.String("letter_id", letterID))
	view := toLetterView(&letter)
	return &view, nil
}

// GetLetterWithSignatures 读取信件和全部签收行, 附带单位名称
func (s *LetterService) GetLetterWithSignatures(ctx context.Context, letterID string) (*types.LetterDetail, error) {
	letter, err := s.repo.LoadLetter(ctx, letterID)
	if err != nil {
		return nil, err
	}
	if len(letter.Signatures) == 0 {
		return nil, routing.NotFound("letter %q has no signature rows", letterID)
	}

	units := make([]routing.Unit, 0, len(letter.Signatures))
	for i := range letter.Signatures {
		u, err := letter.Signatures[i].Unit()
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	names, err := s.directory.ResolveAll(ctx, units)
	if err != nil {
		// 名称只用于展示, 解析失败不影响读取
		s.log(ctx).Warn("Resolve unit names failed", zap.String("letter_id", letterID), zap.Error(err))
		names = nil
	}
	return toDetail(letter, names)
}

// ListInput 列表查询条件
type ListInput struct {
	Status     routing.LetterStatus
	LetterType routing.LetterType
	Keyword    string
	Limit      int
	Offset     int
}

func (s *LetterService) ListLetters(ctx context.Context, in ListInput) (*types.LetterPage, error) {
	if in.Status != "" && !in.Status.Valid() {
		return nil, routing.InvalidArgument("unknown letter status %q", string(in.Status))
	}
	if in.LetterType != "" && !in.LetterType.Valid() {
		return nil, routing.InvalidArgument("unknown letter type %q", string(in.LetterType))
	}
	if in.Offset < 0 {
		return nil, routing.InvalidArgument("offset must not be negative")
	}
	switch {
	case in.Limit <= 0:
		in.Limit = vars.DefaultPageSize
	case in.Limit > vars.MaxPageSize:
		in.Limit = vars.MaxPageSize
	}

	letters, total, err := s.repo.ListLetters(ctx, postgres.LetterFilter{
		Status:     in.Status,
		LetterType: in.LetterType,
		Keyword:    in.Keyword,
		Limit:      in.Limit,
		Offset:     in.Offset,
	})
	if err != nil {
		return nil, err
	}

	page := &types.LetterPage{
		Items:  make([]types.LetterView, 0, len(letters)),
		Total:  total,
		Limit:  in.Limit,
		Offset: in.Offset,
	}
	for i := range letters {
		page.Items = append(page.Items, toLetterView(&letters[i]))
	}
	return page, nil
}

// Inbox 某单位名下的签收行, status 为空表示全部
func (s *LetterService) Inbox(ctx context.Context, unit routing.Unit, status routing.SignatureStatus) ([]types.InboxItem, error) {
	if status != "" && !status.Valid() {
		return nil, routing.InvalidArgument("unknown signature status %q", string(status))
	}
	names, err := s.directory.ResolveAll(ctx, []routing.Unit{unit})
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.ListByUnit(ctx, unit, status)
	if err != nil {
		return nil, err
	}

	items := make([]types.InboxItem, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		items = append(items, types.InboxItem{
			SignatureView: types.SignatureView{
				SignatureID:  r.SignatureID,
				LetterID:     r.LetterID,
				Unit:         unit,
				UnitName:     names[unit],
				Status:       r.Status,
				Descriptions: r.Descriptions,
				SignedDate:   r.SignedDate,
			},
			Subject:      r.Subject,
			Sender:       r.Sender,
			LetterStatus: r.LetterStatus,
		})
	}
	return items, nil
}

// AuditCompletion 检查每封信的状态是否与签收行一致, 只读
func (s *LetterService) AuditCompletion(ctx context.Context) (*types.AuditReport, error) {
	report := &types.AuditReport{Inconsistent: map[string]string{}}
	err := s.repo.ScanLetters(ctx, vars.AuditBatchSize, func(letter *postgres.Letter) error {
		report.Checked++
		rows, err := postgres.Rows(letter.Signatures)
		if err == nil {
			err = routing.CheckConsistency(letter.Status, rows)
		}
		if err != nil {
			report.Inconsistent[letter.LetterID] = err.Error()
			s.metrics.IncrementCounter("audit_inconsistent", "")
			s.logger.Warn("Letter status disagrees with its signatures",
				zap.String("letter_id", letter.LetterID),
				zap.String("status", string(letter.Status)),
				zap.Error(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// withLetter 持有进程内信件锁并在数据库事务中执行 fn.
// 事务与调用方的取消解耦, 只受 txTimeout 限制, 要么整体提交要么整体回滚.
func (s *LetterService) withLetter(ctx context.Context, letterID string, fn func(tx *postgres.LetterTx) error) error {
	txCtx, cancel := s.txContext(ctx)
	defer cancel()

	unlock, err := s.locker.Lock(txCtx, letterID)
	if err != nil {
		return routing.RetryableConflict(err, "letter %q is busy, retry later", letterID)
	}
	defer unlock()

	return s.translate(txCtx, letterID, s.repo.WithLetter(txCtx, letterID, fn))
}

func (s *LetterService) txContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.txTimeout)
}

// translate 把超时和可重试的存储错误统一成可重试的 CONFLICT
func (s *LetterService) translate(txCtx context.Context, letterID string, err error) error {
	if err == nil {
		return nil
	}
	var we *routing.Error
	if errors.As(err, &we) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || txCtx.Err() != nil {
		return routing.RetryableConflict(err, "transaction on letter %q timed out, retry later", letterID)
	}
	if postgres.IsRetryable(err) {
		return routing.RetryableConflict(err, "concurrent update on letter %q, retry", letterID)
	}
	return err
}

func (s *LetterService) reject(ctx context.Context, op, letterID string, err error) error {
	code := routing.CodeOf(err)
	s.metrics.IncrementCounter("workflow_rejected", string(code))
	if code == routing.CodeInternal {
		s.log(ctx).Error("Workflow operation failed",
			zap.String("op", op), zap.String("letter_id", letterID), zap.Error(err))
	} else {
		s.log(ctx).Warn("Workflow operation rejected",
			zap.String("op", op), zap.String("letter_id", letterID),
			zap.String("code", string(code)), zap.Error(err))
	}
	return err
}

func (s *LetterService) log(ctx context.Context) *zap.Logger {
	l := s.logger
	if id := types.RequestID(ctx); id != "" {
		l = l.With(zap.String("request_id", id))
	}
	if actor := types.Actor(ctx); actor != "" {
		l = l.With(zap.String("actor", actor))
	}
	return l
}

func toLetterView(l *postgres.Letter) types.LetterView {
	return types.LetterView{
		LetterID:   l.LetterID,
		Sender:     l.Sender,
		Recipient:  l.Recipient,
		Subject:    l.Subject,
		LetterType: l.LetterType,
		Status:     l.Status,
		CreatedAt:  l.CreatedAt,
	}
}

func toSignatureView(sig *postgres.Signature, name string) (types.SignatureView, error) {
	unit, err := sig.Unit()
	if err != nil {
		return types.SignatureView{}, err
	}
	return types.SignatureView{
		SignatureID:  sig.SignatureID,
		LetterID:     sig.LetterID,
		Unit:         unit,
		UnitName:     name,
		Status:       sig.Status,
		Descriptions: sig.Descriptions,
		SignedDate:   sig.SignedDate,
	}, nil
}

func toDetail(l *postgres.Letter, names map[routing.Unit]string) (*types.LetterDetail, error) {
	detail := &types.LetterDetail{
		Letter:     toLetterView(l),
		Signatures: make([]types.SignatureView, 0, len(l.Signatures)),
	}
	for i := range l.Signatures {
		view, err := toSignatureView(&l.Signatures[i], "")
		if err != nil {
			return nil, err
		}
		view.UnitName = names[view.Unit]
		detail.Signatures = append(detail.Signatures, view)
	}
	return detail, nil
}
