// Package migrate 在两个数据段存储之间复制全部玩家数据。
package migrate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cfchat/backend/internal/pool"
	"cfchat/backend/internal/storage"
)

// Failure 单个玩家的复制错误
type Failure struct {
	ID  uuid.UUID
	Err error
}

// Result 复制结果
type Result struct {
	Copied   int
	Skipped  int // 目标中已存在且未要求覆盖
	Failures []Failure
}

// Err 汇总失败，全部成功时为 nil
func (r *Result) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, fmt.Errorf("%s: %w", f.ID, f.Err))
	}
	return errors.Join(errs...)
}

// Options 复制选项
type Options struct {
	Workers   int  // 并发数
	Overwrite bool // 覆盖目标中已有的数据段
}

// Copy 把 src 中的全部数据段写入 dst。
//
// 单个玩家失败不会中断其他玩家，错误汇总在 Result 中。
func Copy(ctx context.Context, src, dst storage.SectionStore, opts Options, log *zap.Logger) (*Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	ids, err := src.ListSections()
	if err != nil {
		return nil, fmt.Errorf("list source sections: %w", err)
	}

	var existing map[uuid.UUID]struct{}
	if !opts.Overwrite {
		have, err := dst.ListSections()
		if err != nil {
			return nil, fmt.Errorf("list destination sections: %w", err)
		}
		existing = make(map[uuid.UUID]struct{}, len(have))
		for _, id := range have {
			existing[id] = struct{}{}
		}
	}

	var (
		mu     sync.Mutex
		result = &Result{}
	)
	workers := pool.NewWorkerPool(opts.Workers, opts.Workers*2, func(name string, err error) {
		id, _ := uuid.Parse(name)
		mu.Lock()
		result.Failures = append(result.Failures, Failure{ID: id, Err: err})
		mu.Unlock()
		log.Warn("复制数据段失败", zap.String("identity", name), zap.Error(err))
	})
	workers.Start(ctx)

	for _, id := range ids {
		if _, ok := existing[id]; ok {
			result.Skipped++
			continue
		}
		id := id
		err := workers.Submit(ctx, pool.Task{Name: id.String(), Run: func() error {
			sec, err := src.LoadSection(id)
			if err != nil {
				return err
			}
			if err := dst.SaveSection(id, sec); err != nil {
				return err
			}
			mu.Lock()
			result.Copied++
			mu.Unlock()
			return nil
		}})
		if err != nil {
			workers.Stop()
			return result, err
		}
	}
	workers.Stop()

	if err := ctx.Err(); err != nil {
		return result, err
	}

	sort.Slice(result.Failures, func(i, j int) bool {
		return result.Failures[i].ID.String() < result.Failures[j].ID.String()
	})
	log.Info("数据段复制完成",
		zap.Int("copied", result.Copied),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", len(result.Failures)),
	)
	return result, nil
}
