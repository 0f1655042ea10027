// Package model binds state initializers to containers and exposes them as
// models.
//
// A Store names a group of models and carries a read-only context shared by
// their initializers. Each model is either static (one container per
// definition) or dynamic (one container per instance id):
//
//	store := model.DefineStore("app", map[string]any{"region": "eu"})
//	counter, err := model.DefineStatic(ctx, store, model.Sync(
//		func(ctx context.Context, deps model.Dependencies) (Counter, error) {
//			return Counter{}, nil
//		}))
//	counter.BindActions(func(get model.Getter[Counter], set model.Setter, deps model.Dependencies) map[string]model.ActionFunc {
//		return map[string]model.ActionFunc{
//			"inc": func(ctx context.Context, args ...any) (any, error) {
//				_, err := set(ctx, model.Patch{"count": get().Count + 1}, false)
//				return nil, err
//			},
//		}
//	})
//
// Every write goes through the model's pipeline; see package pipeline.
package model
