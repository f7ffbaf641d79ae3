package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	PostKeyPrefix   = "fusion_post:%d"
	PostsListKey    = "fusion_posts:list"
	LayersKeyPrefix = "fusion_post:%d:layers"
)

const (
	PostTTL   = 10 * time.Minute
	ListTTL   = 1 * time.Minute
	LayersTTL = 2 * time.Minute
)

func PostKey(postID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

func LayersKey(postID uint) string {
	return fmt.Sprintf(LayersKeyPrefix, postID)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidatePost(ctx context.Context, postID uint) {
	Invalidate(ctx, PostKey(postID))
	Invalidate(ctx, LayersKey(postID))
}

func InvalidatePostsList(ctx context.Context) {
	Invalidate(ctx, PostsListKey)
}
