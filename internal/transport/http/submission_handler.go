package httptransport

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"portfolio/backend/internal/domain"
	"portfolio/backend/internal/service"
)

// SubmissionHandler 联系表单与投稿管理接口
type SubmissionHandler struct {
	submissions *service.SubmissionService
	log         *zap.Logger
}

// NewSubmissionHandler 创建投稿处理器
func NewSubmissionHandler(submissions *service.SubmissionService, log *zap.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		submissions: submissions,
		log:         log,
	}
}

// jsonText 接受任意 JSON 值：字符串取其内容，数字、布尔、对象和数组保留紧凑的 JSON 文本，null 为空
type jsonText string

func (t *jsonText) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = jsonText(s)
		return nil
	}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*t = ""
		return nil
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, data); err != nil {
		return err
	}
	*t = jsonText(compact.String())
	return nil
}

// optional 将可选字段转换为补丁使用的指针
func (t *jsonText) optional() *string {
	if t == nil {
		return nil
	}
	s := string(*t)
	return &s
}

type contactRequest struct {
	Name    jsonText `json:"name"`
	Email   jsonText `json:"email"`
	Message jsonText `json:"message"`
}

type updateSubmissionRequest struct {
	Name    *jsonText `json:"name"`
	Email   *jsonText `json:"email"`
	Message *jsonText `json:"message"`
}

// bindBody 解析 JSON 请求体
//
// 空请求体或格式错误的请求体按空对象处理，交由业务校验给出错误；
// 只有超出大小限制时返回错误。
func bindBody[T any](c *gin.Context) (T, error) {
	var req T
	if err := c.ShouldBindJSON(&req); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return req, err
		}
		var zero T
		return zero, nil
	}
	return req, nil
}

// CreateContact 处理公开的联系表单提交
//
// POST /api/contact
func (h *SubmissionHandler) CreateContact(c *gin.Context) {
	req, err := bindBody[contactRequest](c)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	entry, err := h.submissions.Create(c.Request.Context(), domain.SubmissionInput{
		Name:    string(req.Name),
		Email:   string(req.Email),
		Message: string(req.Message),
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	h.log.Info("submission created", zap.String("id", entry.ID))
	Created(c, gin.H{"entry": entry})
}

// ListSubmissions 返回全部投稿
//
// GET /api/submissions
func (h *SubmissionHandler) ListSubmissions(c *gin.Context) {
	submissions, err := h.submissions.List(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	OK(c, gin.H{"submissions": submissions})
}

// UpdateSubmission 部分更新投稿
//
// PUT /api/submissions/:id
func (h *SubmissionHandler) UpdateSubmission(c *gin.Context) {
	req, err := bindBody[updateSubmissionRequest](c)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	entry, err := h.submissions.Update(c.Request.Context(), c.Param("id"), domain.SubmissionPatch{
		Name:    req.Name.optional(),
		Email:   req.Email.optional(),
		Message: req.Message.optional(),
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	OK(c, gin.H{"entry": entry})
}

// DeleteSubmission 删除投稿，不存在时 removed 为 0
//
// DELETE /api/submissions/:id
func (h *SubmissionHandler) DeleteSubmission(c *gin.Context) {
	removed, err := h.submissions.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	if removed > 0 {
		h.log.Info("submission deleted", zap.String("id", c.Param("id")))
	}
	OK(c, gin.H{"removed": removed})
}
