package frame

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/emotalk/backend/internal/service/emotion"
	"github.com/zhouzirui/emotalk/backend/pkg/utils"
)

// Classifier 抽象人脸情绪识别服务
type Classifier interface {
	Classify(ctx context.Context, image []byte) (emotion.Result, error)
}

// Handler 图像帧上传的HTTP处理器
type Handler struct {
	classifier Classifier
	maxBytes   int64
}

// New 创建图像帧处理器，maxBytes 为单帧大小上限
func New(classifier Classifier, maxBytes int64) *Handler {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &Handler{classifier: classifier, maxBytes: maxBytes}
}

// RegisterRoutes 注册图像帧相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/upload_frame", h.handleUploadFrame)
}

var formFields = []string{"file", "frame", "image"}

func (h *Handler) handleUploadFrame(w http.ResponseWriter, r *http.Request) {
	// 额外 1MB 留给 multipart 边界和其他字段
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+1<<20)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.RespondError(w, http.StatusRequestEntityTooLarge, "frame too large")
			return
		}
		utils.RespondError(w, http.StatusBadRequest, "failed to parse multipart form: "+err.Error())
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, err := openFrame(r)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to read file: "+err.Error())
		return
	}
	if int64(len(image)) > h.maxBytes {
		utils.RespondError(w, http.StatusRequestEntityTooLarge, "frame too large")
		return
	}

	result, err := h.classifier.Classify(r.Context(), image)
	if err != nil {
		log.Printf("[frame] classify error: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("Internal server error: %v", err))
		return
	}

	utils.RespondJSON(w, http.StatusOK, result)
}

func openFrame(r *http.Request) (multipart.File, error) {
	var lastErr error
	for _, field := range formFields {
		file, _, err := r.FormFile(field)
		if err == nil {
			return file, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
