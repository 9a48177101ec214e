package repository

import (
	"context"

	"github.com/sakif/pips-puzzles/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// PuzzleRepository is the data-access contract for puzzle boards.
//
// viewerID on ListByLikes is the signed-in viewer (for the hasLiked flag);
// pass 0 for anonymous requests. Note there is no method for adjusting the
// like counter here — that only happens inside the LikeRepository
// transaction, never from a handler path.
type PuzzleRepository interface {
	Create(ctx context.Context, puzzle *model.Puzzle) error
	GetByPuzzleID(ctx context.Context, puzzleID string) (*model.PuzzleWithCreator, error)
	ListByLikes(ctx context.Context, opts ListOptions, viewerID int64) ([]model.PuzzleWithCreator, error)
	ListByUser(ctx context.Context, userID int64, opts ListOptions) ([]model.PuzzleWithCreator, error)
	CountAll(ctx context.Context) (int, error)
	CountByUser(ctx context.Context, userID int64) (int, error)
	Update(ctx context.Context, puzzle *model.Puzzle) error
	Delete(ctx context.Context, puzzleID string) error
}

// LikeRepository keeps the user_likes table and the denormalized likes
// counter on puzzles consistent. AddLike and RemoveLike are transactional:
// both writes commit together or neither does.
type LikeRepository interface {
	AddLike(ctx context.Context, userID int64, puzzleID string) (*model.LikeResult, error)
	RemoveLike(ctx context.Context, userID int64, puzzleID string) (*model.LikeResult, error)
	CheckLike(ctx context.Context, userID int64, puzzleID string) (bool, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByGoogleID(ctx context.Context, googleID string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error
	DeleteUser(ctx context.Context, id int64) error
}
