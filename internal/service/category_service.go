package service

import (
	"context"

	"github.com/shinyyama/instrument-market/internal/model"
	"github.com/shinyyama/instrument-market/internal/repository"
)

// DefaultCategories is the catalog every fresh installation starts with.
var DefaultCategories = []model.Category{
	{Name: "吉他", Description: "各种类型吉他", Icon: "fas fa-guitar", SortOrder: 1},
	{Name: "钢琴", Description: "钢琴及键盘乐器", Icon: "fas fa-music", SortOrder: 2},
	{Name: "小提琴", Description: "弦乐器", Icon: "fas fa-violin", SortOrder: 3},
	{Name: "鼓类", Description: "打击乐器", Icon: "fas fa-drum", SortOrder: 4},
	{Name: "管乐器", Description: "铜管和木管乐器", Icon: "fas fa-trumpet", SortOrder: 5},
	{Name: "民族乐器", Description: "中国传统乐器", Icon: "fas fa-guitar", SortOrder: 6},
	{Name: "其他", Description: "其他类型乐器", Icon: "fas fa-question-circle", SortOrder: 7},
}

type CategoryService interface {
	List(ctx context.Context) ([]model.Category, error)
	EnsureDefaults(ctx context.Context) (int64, error)
}

type categoryService struct {
	repo repository.CategoryRepository
}

func NewCategoryService(repo repository.CategoryRepository) CategoryService {
	return &categoryService{repo: repo}
}

func (s *categoryService) List(ctx context.Context) ([]model.Category, error) {
	return s.repo.List(ctx)
}

func (s *categoryService) EnsureDefaults(ctx context.Context) (int64, error) {
	defaults := make([]model.Category, len(DefaultCategories))
	copy(defaults, DefaultCategories)
	return s.repo.EnsureDefaults(ctx, defaults)
}
