package core

import (
	"context"
	"fmt"
	"net/url"
)

// StageLockName names the lock of one build stage, identified by the
// project name and the digest of the stage dependencies. Name parts are
// path-escaped so every lock name stays a single file name.
func StageLockName(projectName, dependenciesDigest string) string {
	return fmt.Sprintf("%s.%s", url.PathEscape(projectName), url.PathEscape(dependenciesDigest))
}

// StageCacheLockName names the lock of one stage cache entry.
func StageCacheLockName(projectName, dependenciesDigest string) string {
	return fmt.Sprintf("%s.%s.cache", url.PathEscape(projectName), url.PathEscape(dependenciesDigest))
}

// ImageLockName names the lock of imageName. Image names such as
// "backend/api" are escaped into a single file name.
func ImageLockName(imageName string) string {
	return fmt.Sprintf("%s.image", url.PathEscape(imageName))
}

// StagesAndImagesLockName names the project-wide lock taken while stages
// and images are listed or cleaned up together.
func StagesAndImagesLockName(projectName string) string {
	return fmt.Sprintf("%s.stages_and_images", url.PathEscape(projectName))
}

// LockStage runs body while holding the lock of one stage of projectName.
func (e *Engine) LockStage(ctx context.Context, projectName, dependenciesDigest string, body func() error) error {
	return e.Lock(ctx, StageLockName(projectName, dependenciesDigest), nil, body)
}

// LockStageCache runs body while holding the lock of one stage cache entry.
func (e *Engine) LockStageCache(ctx context.Context, projectName, dependenciesDigest string, body func() error) error {
	return e.Lock(ctx, StageCacheLockName(projectName, dependenciesDigest), nil, body)
}

// LockImage runs body while holding the lock of imageName.
func (e *Engine) LockImage(ctx context.Context, imageName string, body func() error) error {
	return e.Lock(ctx, ImageLockName(imageName), nil, body)
}

// LockStagesAndImages runs body while holding the project-wide stages and images lock.
func (e *Engine) LockStagesAndImages(ctx context.Context, projectName string, body func() error) error {
	return e.Lock(ctx, StagesAndImagesLockName(projectName), nil, body)
}
