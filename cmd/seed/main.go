package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shinyyama/instrument-market/internal/auth"
	"github.com/shinyyama/instrument-market/internal/config"
	"github.com/shinyyama/instrument-market/internal/db"
	"github.com/shinyyama/instrument-market/internal/model"
	"github.com/shinyyama/instrument-market/internal/repository"
	"github.com/shinyyama/instrument-market/internal/service"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type seedInstrument struct {
	Title     string
	Brand     string
	Model     string
	Price     int64
	Condition model.Condition
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("seed failed: %v", err)
	}
}

func run() error {
	ctx := context.Background()
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	gdb, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	if err := db.Migrate(gdb); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	categoryRepo := repository.NewCategoryRepository(gdb)
	n, err := service.NewCategoryService(categoryRepo).EnsureDefaults(ctx)
	if err != nil {
		return fmt.Errorf("seed categories: %w", err)
	}
	log.Printf("seeded %d categories", n)

	users := repository.NewUserRepository(gdb)
	seller, err := ensureTestUser(ctx, users)
	if err != nil {
		return err
	}

	instruments := repository.NewInstrumentRepository(gdb)
	canSeed, err := shouldSeed(ctx, instruments)
	if err != nil {
		return err
	}
	if !canSeed {
		log.Printf("instruments already exist; skipping seed (set FORCE_SEED=true to override)")
		return nil
	}

	cats, err := categoryRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	tx := repository.NewTransactor(gdb)
	count := 0
	err = tx.WithinTx(ctx, func(ctx context.Context) error {
		for _, c := range cats {
			for i, it := range sampleInstruments[c.Name] {
				categoryID := c.ID
				inst := &model.Instrument{
					Title:       it.Title,
					Description: fmt.Sprintf("%s %s，自用保养良好，校内可面交。", it.Brand, it.Model),
					Price:       decimal.NewFromInt(it.Price),
					CategoryID:  &categoryID,
					OwnerID:     seller.ID,
					Condition:   it.Condition,
					Brand:       it.Brand,
					Model:       it.Model,
					Location:    "校园",
					Status:      model.InstrumentStatusAvailable,
				}
				if err := instruments.Create(ctx, inst); err != nil {
					return fmt.Errorf("insert instrument %q: %w", it.Title, err)
				}
				images := []model.InstrumentImage{
					{ImageURL: picsumURL(c.ID, i+1, 1), IsMain: true, SortOrder: 0},
					{ImageURL: picsumURL(c.ID, i+1, 2), SortOrder: 1},
				}
				if err := instruments.ReplaceImages(ctx, inst.ID, images); err != nil {
					return fmt.Errorf("insert images for %q: %w", it.Title, err)
				}
				count++
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("seeded %d instruments", count)
	return nil
}

// ensureTestUser creates testuser / password123 unless it already exists.
func ensureTestUser(ctx context.Context, users repository.UserRepository) (*model.User, error) {
	u, err := users.FindByUsername(ctx, "testuser")
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find test user: %w", err)
	}
	hash, err := auth.HashPassword("password123")
	if err != nil {
		return nil, err
	}
	u = &model.User{
		Username:     "testuser",
		Email:        "test@example.com",
		PasswordHash: hash,
		RealName:     "测试用户",
		Role:         model.UserRoleUser,
		CreditScore:  100,
		IsVerified:   true,
	}
	if err := users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("create test user: %w", err)
	}
	log.Printf("created test user testuser / password123")
	return u, nil
}

func shouldSeed(ctx context.Context, instruments repository.InstrumentRepository) (bool, error) {
	cnt, err := instruments.Count(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("count instruments: %w", err)
	}
	if cnt == 0 {
		return true, nil
	}
	return strings.EqualFold(os.Getenv("FORCE_SEED"), "true"), nil
}

func picsumURL(categoryID uint64, itemIndex, k int) string {
	return fmt.Sprintf("https://picsum.photos/seed/instrument-%d-%d-%d/600/600", categoryID, itemIndex, k)
}

var sampleInstruments = map[string][]seedInstrument{
	"吉他": {
		{Title: "雅马哈 F310 民谣吉他", Brand: "Yamaha", Model: "F310", Price: 650, Condition: model.ConditionGood},
		{Title: "芬达 Player Strat 电吉他", Brand: "Fender", Model: "Player Stratocaster", Price: 4200, Condition: model.ConditionLikeNew},
	},
	"钢琴": {
		{Title: "卡西欧 88键电钢琴", Brand: "Casio", Model: "PX-S1100", Price: 2800, Condition: model.ConditionGood},
	},
	"小提琴": {
		{Title: "4/4 手工小提琴 带琴盒", Brand: "Hora", Model: "V100", Price: 1500, Condition: model.ConditionFair},
	},
	"鼓类": {
		{Title: "罗兰 电子鼓", Brand: "Roland", Model: "TD-07KV", Price: 5200, Condition: model.ConditionLikeNew},
		{Title: "非洲鼓 10寸", Brand: "Meinl", Model: "HDJ500", Price: 380, Condition: model.ConditionGood},
	},
	"管乐器": {
		{Title: "雅马哈 降B调单簧管", Brand: "Yamaha", Model: "YCL-255", Price: 3100, Condition: model.ConditionGood},
	},
	"民族乐器": {
		{Title: "紫檀二胡", Brand: "敦煌", Model: "02", Price: 900, Condition: model.ConditionGood},
		{Title: "古筝 163cm", Brand: "敦煌", Model: "694", Price: 2600, Condition: model.ConditionFair},
	},
	"其他": {
		{Title: "尤克里里 23寸", Brand: "Kala", Model: "KA-C", Price: 420, Condition: model.ConditionNew},
	},
}
