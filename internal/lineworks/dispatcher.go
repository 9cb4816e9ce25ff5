package lineworks

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"
)

// Dispatcher sends workflow notifications through the WORKS bot. Every
// send collapses failure to a boolean so callers can record a warning and
// move on; notification delivery never blocks the workflow.
type Dispatcher struct {
	client    *Client
	cfg       Config
	channelID string
	logger    *zap.Logger
}

// NewDispatcher creates a notification dispatcher
func NewDispatcher(cfg Config, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		client:    NewClient(cfg, logger),
		cfg:       cfg,
		channelID: cfg.ChannelID,
		logger:    logger,
	}
}

// SendFileToChannel uploads the artifact and posts it to the approval
// channel: token, attachment registration, multipart upload, message.
func (d *Dispatcher) SendFileToChannel(ctx context.Context, filePath string) bool {
	if !d.cfg.Complete() || d.channelID == "" {
		d.logger.Warn("WORKS bot not configured, skipping file notification")
		return false
	}

	token, err := d.client.accessToken(ctx)
	if err != nil {
		d.logger.Warn("Failed to obtain access token", zap.Error(err))
		return false
	}

	uploadURL, fileID, err := d.client.registerAttachment(ctx, token, filepath.Base(filePath))
	if err != nil {
		d.logger.Warn("Failed to register attachment", zap.Error(err))
		return false
	}

	if err := d.client.uploadFile(ctx, token, uploadURL, filePath); err != nil {
		d.logger.Warn("Failed to upload attachment",
			zap.String("path", filePath), zap.Error(err))
		return false
	}

	path := channelMessagePath(d.cfg.BotID, d.channelID)
	if err := d.client.postMessage(ctx, token, path, fileContent(fileID)); err != nil {
		d.logger.Warn("Failed to post file message", zap.Error(err))
		return false
	}

	d.logger.Info("Artifact posted to approval channel",
		zap.String("path", filePath), zap.String("file_id", fileID))
	return true
}

// SendTextToChannel posts a text message to the approval channel.
func (d *Dispatcher) SendTextToChannel(ctx context.Context, message string) bool {
	if !d.cfg.Complete() || d.channelID == "" {
		d.logger.Warn("WORKS bot not configured, skipping channel notification")
		return false
	}

	token, err := d.client.accessToken(ctx)
	if err != nil {
		d.logger.Warn("Failed to obtain access token", zap.Error(err))
		return false
	}

	path := channelMessagePath(d.cfg.BotID, d.channelID)
	if err := d.client.postMessage(ctx, token, path, textContent(message)); err != nil {
		d.logger.Warn("Failed to post channel message", zap.Error(err))
		return false
	}
	return true
}

// SendTextToUser posts a direct text message to a single account.
func (d *Dispatcher) SendTextToUser(ctx context.Context, accountID, message string) bool {
	if !d.cfg.Complete() || accountID == "" {
		d.logger.Warn("WORKS bot not configured or account missing, skipping direct notification")
		return false
	}

	token, err := d.client.accessToken(ctx)
	if err != nil {
		d.logger.Warn("Failed to obtain access token", zap.Error(err))
		return false
	}

	path := userMessagePath(d.cfg.BotID, accountID)
	if err := d.client.postMessage(ctx, token, path, textContent(message)); err != nil {
		d.logger.Warn("Failed to post direct message",
			zap.String("account", accountID), zap.Error(err))
		return false
	}
	return true
}
