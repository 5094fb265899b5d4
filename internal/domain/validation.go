package domain

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// newSubmissionRules 去除空白后的新投稿校验规则
type newSubmissionRules struct {
	Name    string `validate:"required"`
	Email   string `validate:"required"`
	Message string `validate:"required,max=1000"`
}

// patchRules 部分更新时的校验规则，字段允许为空字符串
type patchRules struct {
	Message *string `validate:"omitempty,max=1000"`
}

// NormalizeNew 去除字段首尾空白并校验新投稿
//
// 邮箱作为不透明文本保存，不做格式校验。
//
// 返回值:
//   - SubmissionInput: 去除空白后的表单
//   - error: ErrMissingFields 或 ErrMessageTooLong
func NormalizeNew(in SubmissionInput) (SubmissionInput, error) {
	out := SubmissionInput{
		Name:    strings.TrimSpace(in.Name),
		Email:   strings.TrimSpace(in.Email),
		Message: strings.TrimSpace(in.Message),
	}

	err := validate.Struct(newSubmissionRules(out))
	if err == nil {
		return out, nil
	}
	return out, translate(err)
}

// NormalizePatch 去除补丁中已提供字段的首尾空白并校验留言长度
func NormalizePatch(p SubmissionPatch) (SubmissionPatch, error) {
	out := SubmissionPatch{
		Name:    trimmed(p.Name),
		Email:   trimmed(p.Email),
		Message: trimmed(p.Message),
	}

	if err := validate.Struct(patchRules{Message: out.Message}); err != nil {
		return out, translate(err)
	}
	return out, nil
}

// translate 将校验失败映射为领域错误，长度按字符计数
func translate(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			return ErrMissingFields
		}
	}
	return ErrMessageTooLong
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
