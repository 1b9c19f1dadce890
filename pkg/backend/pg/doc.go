// Package pg implements a scheduler queue backend on PostgreSQL using pgx.
//
// Messages are rows in scheduler_messages. Get claims the oldest visible row
// with FOR UPDATE SKIP LOCKED and pushes its visible_at forward by the
// visibility timeout, so several processes can poll the same topic. Del
// deletes the row; Release resets visible_at to now. A claimed row whose
// process dies becomes visible again once the timeout expires.
//
// The schema ships as embedded goose migrations applied by Migrate.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	if err := pg.Migrate(ctx, pool, cfg, log); err != nil {
//	    return err
//	}
//	backend, err := pg.New(pool, cfg)
package pg
