package service

import (
	"bytes"
	"coder_edu_sync/internal/util"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
)

// maxModuleContentSize 单个模块离线包上限
const maxModuleContentSize = 16 << 20

var moduleIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

type ContentService struct {
	StorageService *StorageService
}

func NewContentService(storageService *StorageService) *ContentService {
	return &ContentService{StorageService: storageService}
}

// GetModuleContent 读取模块离线内容包（不透明 JSON：课时、正文、媒体引用）
func (s *ContentService) GetModuleContent(ctx context.Context, moduleID string) (json.RawMessage, error) {
	if !moduleIDPattern.MatchString(moduleID) {
		return nil, util.ErrInvalidModuleID
	}

	rc, err := s.StorageService.Open(ctx, util.ModuleContentKey(moduleID))
	if errors.Is(err, util.ErrObjectNotFound) {
		return nil, util.ErrModuleContentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open module content %s: %w", moduleID, err)
	}
	defer rc.Close()

	body, err := io.ReadAll(io.LimitReader(rc, maxModuleContentSize+1))
	if err != nil {
		return nil, fmt.Errorf("read module content %s: %w", moduleID, err)
	}
	if len(body) > maxModuleContentSize || !json.Valid(body) {
		return nil, util.ErrInvalidModuleContent
	}
	return json.RawMessage(body), nil
}

// PublishModuleContent 教师发布/替换模块离线内容包
func (s *ContentService) PublishModuleContent(ctx context.Context, moduleID string, body []byte) error {
	if !moduleIDPattern.MatchString(moduleID) {
		return util.ErrInvalidModuleID
	}
	if len(body) > maxModuleContentSize || !json.Valid(body) {
		return util.ErrInvalidModuleContent
	}
	return s.StorageService.Upload(ctx, util.ModuleContentKey(moduleID), bytes.NewReader(body), int64(len(body)), util.MimeJSON)
}
