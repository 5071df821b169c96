package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// SafeDelete deletes cache keys and only logs failures
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

// QuestionPoolKey is the key of the question id pool of one unit
func QuestionPoolKey(unitType string, unitID uint) string {
	return fmt.Sprintf("pool:%s:%d", unitType, unitID)
}

// UserIDKey and UserNameKey address the two lookups of a cached user
func UserIDKey(id uint) string {
	return fmt.Sprintf("id:%d", id)
}

func UserNameKey(username string) string {
	return fmt.Sprintf("username:%s", username)
}

// InvalidateQuestionPool drops the cached question ids of a unit after questions change
func InvalidateQuestionPool(ctx context.Context, cm *CacheManager, unitType string, unitID uint) {
	SafeDelete(ctx, cm.Question, QuestionPoolKey(unitType, unitID))
}

// InvalidateUser drops both cached lookups of a user
func InvalidateUser(ctx context.Context, cm *CacheManager, id uint, username string) {
	SafeDelete(ctx, cm.User, UserIDKey(id), UserNameKey(username))
}
