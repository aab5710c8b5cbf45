package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"letter-portal/api/response"
	"letter-portal/logic/routing"
	"letter-portal/service"
	"letter-portal/types"
)

type LetterHandler struct {
	letterSvc *service.LetterService
}

func NewLetterHandler(letterSvc *service.LetterService) *LetterHandler {
	return &LetterHandler{letterSvc: letterSvc}
}

// Create 登记信件并分发到目标单位
func (h *LetterHandler) Create(c *gin.Context) {
	var req types.CreateLetterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "参数错误: "+err.Error())
		return
	}

	targets := make([]routing.Unit, 0, len(req.Targets))
	for _, t := range req.Targets {
		u, err := toUnit(t)
		if err != nil {
			response.FailWithError(c, err)
			return
		}
		targets = append(targets, u)
	}

	detail, err := h.letterSvc.CreateLetter(c.Request.Context(), service.CreateLetterInput{
		LetterID:   req.LetterID,
		Sender:     req.Sender,
		Recipient:  req.Recipient,
		Subject:    req.Subject,
		LetterType: routing.LetterType(req.LetterType),
		Targets:    targets,
	})
	if err != nil {
		response.FailWithError(c, err)
		return
	}
	response.Created(c, detail)
}

func (h *LetterHandler) Get(c *gin.Context) {
	detail, err := h.letterSvc.GetLetterWithSignatures(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FailWithError(c, err)
		return
	}
	response.Success(c, detail)
}

func (h *LetterHandler) List(c *gin.Context) {
	var q types.ListLettersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Fail(c, "参数错误: "+err.Error())
		return
	}
	page, err := h.letterSvc.ListLetters(c.Request.Context(), service.ListInput{
		Status:     routing.LetterStatus(q.Status),
		LetterType: routing.LetterType(q.LetterType),
		Keyword:    q.Keyword,
		Limit:      q.Limit,
		Offset:     q.Offset,
	})
	if err != nil {
		response.FailWithError(c, err)
		return
	}
	response.Success(c, page)
}

// Dispatch 首次分发到某个签收行
func (h *LetterHandler) Dispatch(c *gin.Context) {
	sid, ok := signatureParam(c)
	if !ok {
		return
	}
	view, err := h.letterSvc.Dispatch(c.Request.Context(), c.Param("id"), sid)
	if err != nil {
		response.FailWithError(c, err)
		return
	}
	response.Success(c, view)
}

// Sign 签收并转交
func (h *LetterHandler) Sign(c *gin.Context) {
	sid, ok := signatureParam(c)
	if !ok {
		return
	}
	var req types.SignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "参数错误: "+err.Error())
		return
	}

	in := service.SignInput{SignatureID: sid, Descriptions: req.Descriptions}
	if req.Destination != nil {
		dest, err := toUnit(*req.Destination)
		if err != nil {
			response.FailWithError(c, err)
			return
		}
		in.Destination = &dest
	}

	view, err := h.letterSvc.SignAndForward(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		response.FailWithError(c, err)
		return
	}
	response.Success(c, view)
}

func (h *LetterHandler) Hide(c *gin.Context) {
	view, err := h.letterSvc.HideLetter(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FailWithError(c, err)
		return
	}
	response.Success(c, view)
}

// Inbox 某单位的签收行, 可按状态过滤
func (h *LetterHandler) Inbox(c *gin.Context) {
	kind, err := routing.ParseKind(c.Param("kind"))
	if err != nil {
		response.FailWithError(c, err)
		return
	}
	id, err := strconv.ParseInt(c.Param("unitId"), 10, 64)
	if err != nil {
		response.Fail(c, "参数错误: unit id 必须是整数")
		return
	}
	var q types.InboxQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Fail(c, "参数错误: "+err.Error())
		return
	}

	unit := routing.Unit{Kind: kind, ID: id}
	if err := unit.Validate(); err != nil {
		response.FailWithError(c, err)
		return
	}
	items, err := h.letterSvc.Inbox(c.Request.Context(), unit, routing.SignatureStatus(q.Status))
	if err != nil {
		response.FailWithError(c, err)
		return
	}
	response.Success(c, items)
}

func toUnit(t types.TargetRequest) (routing.Unit, error) {
	kind, err := routing.ParseKind(t.Kind)
	if err != nil {
		return routing.Unit{}, err
	}
	u := routing.Unit{Kind: kind, ID: t.ID}
	return u, u.Validate()
}

func signatureParam(c *gin.Context) (int64, bool) {
	sid, err := strconv.ParseInt(c.Param("sid"), 10, 64)
	if err != nil || sid <= 0 {
		response.Fail(c, "参数错误: signature id 必须是正整数")
		return 0, false
	}
	return sid, true
}
