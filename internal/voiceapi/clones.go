package voiceapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/book-expert/voice-studio/internal/core"
)

// Form field names.
const (
	formFieldName        = "name"
	formFieldDescription = "description"
	formFieldAudioSample = "audio_sample"
	defaultSampleName    = "sample.wav"
)

// Clone upload error messages.
const (
	errFmtCreateFormFile = "failed to create form file: %w"
	errFmtCopySample     = "failed to copy audio sample: %w"
	errFmtWriteField     = "failed to write %s field: %w"
	errFmtCloseWriter    = "failed to close multipart writer: %w"
)

// Static clone errors.
var (
	ErrCloneNameEmpty   = errors.New("clone name cannot be empty")
	ErrCloneSampleEmpty = errors.New("clone audio sample cannot be empty")
)

// CreateClone uploads an audio sample and registers a new voice clone. The
// returned clone usually starts in the pending state.
func (c *Client) CreateClone(ctx context.Context, upload core.CloneUpload) (core.VoiceTarget, error) {
	if upload.Name == "" {
		return core.VoiceTarget{}, ErrCloneNameEmpty
	}

	if upload.Audio == nil {
		return core.VoiceTarget{}, ErrCloneSampleEmpty
	}

	body, contentType, err := buildCloneForm(upload)
	if err != nil {
		return core.VoiceTarget{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+apiClones, body)
	if err != nil {
		return core.VoiceTarget{}, fmt.Errorf(errFmtCreateRequest, http.MethodPost, apiClones, err)
	}

	req.Header.Set(headerContentType, contentType)
	req.Header.Set(headerAccept, contentTypeJSON)

	var clone core.VoiceTarget

	err = c.send(req, &clone)
	if err != nil {
		return core.VoiceTarget{}, err
	}

	clone.Kind = core.VoiceTypeClone

	return clone, nil
}

func buildCloneForm(upload core.CloneUpload) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer

	writer := multipart.NewWriter(&buf)

	err := writer.WriteField(formFieldName, upload.Name)
	if err != nil {
		return nil, "", fmt.Errorf(errFmtWriteField, formFieldName, err)
	}

	err = writer.WriteField(formFieldDescription, upload.Description)
	if err != nil {
		return nil, "", fmt.Errorf(errFmtWriteField, formFieldDescription, err)
	}

	fileName := upload.FileName
	if fileName == "" {
		fileName = defaultSampleName
	}

	part, err := writer.CreateFormFile(formFieldAudioSample, fileName)
	if err != nil {
		return nil, "", fmt.Errorf(errFmtCreateFormFile, err)
	}

	_, err = io.Copy(part, upload.Audio)
	if err != nil {
		return nil, "", fmt.Errorf(errFmtCopySample, err)
	}

	err = writer.Close()
	if err != nil {
		return nil, "", fmt.Errorf(errFmtCloseWriter, err)
	}

	return &buf, writer.FormDataContentType(), nil
}
