package utils

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// CloudinaryConfig holds Cloudinary configuration
type CloudinaryConfig struct {
	CloudName    string
	APIKey       string
	APISecret    string
	UploadPreset string
}

// Uploader stores a file and returns its public URL. file is anything the
// Cloudinary SDK accepts: a path, a URL, an io.Reader.
type Uploader interface {
	Upload(ctx context.Context, file interface{}, publicID, folder string) (string, error)
}

// ImageUploader is set in main. Handlers refuse image uploads while it is nil.
var ImageUploader Uploader

var ErrUploaderNotConfigured = errors.New("image storage is not configured")

type CloudinaryUploader struct {
	cld          *cloudinary.Cloudinary
	uploadPreset string
	// Transformation is applied to every upload, e.g. "c_thumb,w_200,h_200"
	Transformation string
}

// InitCloudinary initializes the Cloudinary client
func InitCloudinary(cfg CloudinaryConfig) (*CloudinaryUploader, error) {
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, err
	}
	return &CloudinaryUploader{cld: cld, uploadPreset: cfg.UploadPreset}, nil
}

// Upload uploads a file to Cloudinary and returns the secure URL
func (u *CloudinaryUploader) Upload(ctx context.Context, file interface{}, publicID, folder string) (string, error) {
	uploadParams := uploader.UploadParams{
		PublicID:       publicID,
		Folder:         folder,
		UploadPreset:   u.uploadPreset,
		Transformation: u.Transformation,
	}

	resp, err := u.cld.Upload.Upload(ctx, file, uploadParams)
	if err != nil {
		return "", err
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("cloudinary: %s", resp.Error.Message)
	}
	return resp.SecureURL, nil
}

// UploadImage uploads through ImageUploader
func UploadImage(ctx context.Context, file interface{}, publicID, folder string) (string, error) {
	if ImageUploader == nil {
		return "", ErrUploaderNotConfigured
	}
	return ImageUploader.Upload(ctx, file, publicID, folder)
}
