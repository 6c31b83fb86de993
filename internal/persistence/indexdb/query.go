package indexdb

import (
	"context"
	"database/sql"
	"errors"
)

type TransferRow struct {
	Tick          uint64 `json:"tick"`
	SessionID     string `json:"session_id"`
	Trigger       string `json:"trigger"`
	Mode          string `json:"mode"`
	ContainerName string `json:"container_name"`
	TypeID        int    `json:"type_id"`
	ItemName      string `json:"item_name"`
	Count         int    `json:"count"`
}

type ItemTotal struct {
	TypeID    int    `json:"type_id"`
	ItemName  string `json:"item_name"`
	Transfers int    `json:"transfers"`
	Count     int64  `json:"count"`
}

type SnapshotRow struct {
	Tick       uint64 `json:"tick"`
	Path       string `json:"path"`
	World      string `json:"world"`
	Containers int    `json:"containers"`
	Items      int    `json:"items"`
	StoreCount int    `json:"store_count"`
}

// RecentTransfers returns the newest transfers first.
func (s *SQLiteIndex) RecentTransfers(ctx context.Context, limit int) ([]TransferRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT tick,session_id,trigger,mode,container_name,type_id,item_name,count
		FROM transfers ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TransferRow
	for rows.Next() {
		var r TransferRow
		var tick int64
		if err := rows.Scan(&tick, &r.SessionID, &r.Trigger, &r.Mode, &r.ContainerName, &r.TypeID, &r.ItemName, &r.Count); err != nil {
			return nil, err
		}
		r.Tick = uint64(tick)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ItemTotals sums transferred counts per item type, largest first.
func (s *SQLiteIndex) ItemTotals(ctx context.Context) ([]ItemTotal, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT type_id, MAX(item_name), COUNT(*), SUM(count)
		FROM transfers GROUP BY type_id ORDER BY SUM(count) DESC, type_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ItemTotal
	for rows.Next() {
		var r ItemTotal
		if err := rows.Scan(&r.TypeID, &r.ItemName, &r.Transfers, &r.Count); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PassCounts returns executed and skipped pass counts.
func (s *SQLiteIndex) PassCounts(ctx context.Context) (executed, skipped int64, err error) {
	err = s.db.QueryRowContext(ctx, `SELECT
		COALESCE(SUM(CASE WHEN skipped='' THEN 1 ELSE 0 END),0),
		COALESCE(SUM(CASE WHEN skipped<>'' THEN 1 ELSE 0 END),0)
		FROM passes`).Scan(&executed, &skipped)
	return executed, skipped, err
}

func (s *SQLiteIndex) LatestSnapshot(ctx context.Context) (SnapshotRow, bool, error) {
	var r SnapshotRow
	var tick int64
	err := s.db.QueryRowContext(ctx, `SELECT tick,path,world,containers,items,store_count
		FROM snapshots ORDER BY tick DESC LIMIT 1`).Scan(&tick, &r.Path, &r.World, &r.Containers, &r.Items, &r.StoreCount)
	if err != nil {
		if isNoRows(err) {
			return r, false, nil
		}
		return r, false, err
	}
	r.Tick = uint64(tick)
	return r, true, nil
}

func isNoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }
