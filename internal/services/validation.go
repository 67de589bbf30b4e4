package services

import (
	"strings"

	"github.com/go-playground/validator/v10"
	apperrors "github.com/izana/backend-go/internal/errors"
)

var validate = validator.New()

// ValidateChatRequest 校验聊天请求
// 纯文本请求要求message去除空白后非空；化验单请求允许message为空，
// 因为检索串由结构化化验值合成
func ValidateChatRequest(req *ChatRequest, maxMessageLength int) *apperrors.AppError {
	if req == nil {
		return apperrors.NewValidationError("request body is required")
	}

	message := strings.TrimSpace(req.Message)
	if message == "" && !req.IsBloodWork() {
		return apperrors.NewInvalidInputError("message", "must not be empty")
	}
	if maxMessageLength > 0 && len([]rune(req.Message)) > maxMessageLength {
		return apperrors.NewInvalidInputError("message", "exceeds maximum length")
	}

	return nil
}

// ValidateFeedbackRequest 校验反馈请求
func ValidateFeedbackRequest(req *FeedbackRequest) *apperrors.AppError {
	if req == nil {
		return apperrors.NewValidationError("request body is required")
	}
	if err := validate.Struct(req); err != nil {
		if fieldErrors, ok := err.(validator.ValidationErrors); ok && len(fieldErrors) > 0 {
			fe := fieldErrors[0]
			return apperrors.NewInvalidInputError(strings.ToLower(fe.Field()), fe.Tag())
		}
		return apperrors.NewValidationError(err.Error())
	}
	return nil
}
