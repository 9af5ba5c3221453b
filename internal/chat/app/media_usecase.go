package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"realtime_chat/internal/chat/domain"
	"realtime_chat/internal/chat/repository"
	"realtime_chat/pkg/logger"

	"go.uber.org/zap"
)

// blob folders
const (
	ProfileImageDir  = "images"
	MessageImageDir  = "messages_images"
	MessageVideoDir  = "messages_videos"
	photoMessageName = "photo_message_"
	videoMessageName = "video_message_"
)

// MediaUseCase profile pictures and message attachments
type MediaUseCase struct {
	blobs repository.BlobRepository
}

// NewMediaUseCase init media use case
func NewMediaUseCase(blobs repository.BlobRepository) *MediaUseCase {
	return &MediaUseCase{blobs: blobs}
}

// PhotoMessageFileName blob file name of the photo attached to messageID
func PhotoMessageFileName(messageID string) string {
	return photoMessageName + strings.ReplaceAll(messageID, " ", "-") + ".png"
}

// VideoMessageFileName blob file name of the video attached to messageID
func VideoMessageFileName(messageID string) string {
	return videoMessageName + strings.ReplaceAll(messageID, " ", "-") + ".mov"
}

// UploadProfilePicture store the profile picture of safeEmail and return its url
func (uc *MediaUseCase) UploadProfilePicture(ctx context.Context, safeEmail string, data []byte) (string, error) {
	return uc.upload(ctx, ProfileImageDir, domain.ProfilePictureFileName(safeEmail), data, "image/png")
}

// UploadMessagePhoto store a photo attachment and return its url
func (uc *MediaUseCase) UploadMessagePhoto(ctx context.Context, fileName string, data []byte) (string, error) {
	return uc.upload(ctx, MessageImageDir, fileName, data, http.DetectContentType(data))
}

// UploadMessageVideo store a video attachment and return its url
func (uc *MediaUseCase) UploadMessageVideo(ctx context.Context, fileName string, data []byte) (string, error) {
	return uc.upload(ctx, MessageVideoDir, fileName, data, "video/quicktime")
}

// DownloadURL url of a stored blob
func (uc *MediaUseCase) DownloadURL(ctx context.Context, objectPath string) (string, error) {
	u, err := uc.blobs.DownloadURL(ctx, strings.TrimPrefix(objectPath, "/"))
	if err != nil {
		logger.Log.Error("download url failed", zap.String("path", objectPath), zap.Error(err))
		return "", fmt.Errorf("%w: %w", domain.ErrFailedToDownloadURL, err)
	}
	return u, nil
}

func (uc *MediaUseCase) upload(ctx context.Context, dir, fileName string, data []byte, contentType string) (string, error) {
	if fileName == "" || strings.ContainsAny(fileName, "/\\") {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidPath, fileName)
	}
	objectPath := dir + "/" + fileName

	if err := uc.blobs.Upload(ctx, objectPath, data, contentType); err != nil {
		logger.Log.Error("upload failed", zap.String("path", objectPath), zap.Error(err))
		return "", fmt.Errorf("%w: %w", domain.ErrFailedToUpload, err)
	}
	logger.Log.Info("uploaded", zap.String("path", objectPath), zap.Int("size", len(data)))
	return uc.DownloadURL(ctx, objectPath)
}
