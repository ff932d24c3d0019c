package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/remindbot/store"
)

func (d *DB) CreateReminder(ctx context.Context, create *store.Reminder) (*store.Reminder, error) {
	fields := []string{
		"uid", "chat_id", "user_id",
		"fire_date", "fire_time", "timezone",
		"text", "repeatability", "notified", "fire_ts",
	}
	args := []any{
		create.UID, create.ChatID, create.UserID,
		create.Date, create.Time, create.Timezone,
		create.Text, create.Repeatability, create.Notified, create.FireTs,
	}
	if create.CreatedTs != 0 {
		fields, args = append(fields, "created_ts"), append(args, create.CreatedTs)
	}
	if create.UpdatedTs != 0 {
		fields, args = append(fields, "updated_ts"), append(args, create.UpdatedTs)
	}

	stmt := `INSERT INTO reminder (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id, created_ts, updated_ts`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(
		&create.ID,
		&create.CreatedTs,
		&create.UpdatedTs,
	); err != nil {
		return nil, errors.Wrap(err, "failed to create reminder")
	}
	return create, nil
}

func (d *DB) ListReminders(ctx context.Context, find *store.FindReminder) ([]*store.Reminder, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "reminder.id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.UID; v != nil {
		where, args = append(where, "reminder.uid = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.ChatID; v != nil {
		where, args = append(where, "reminder.chat_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.UserID; v != nil {
		where, args = append(where, "reminder.user_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Notified; v != nil {
		where, args = append(where, "reminder.notified = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.FireTsBefore; v != nil {
		where, args = append(where, "reminder.fire_ts <= "+placeholder(len(args)+1)), append(args, *v)
	}

	query := `
		SELECT
			id, uid, chat_id, user_id, created_ts, updated_ts,
			fire_date, fire_time, timezone,
			text, repeatability, notified, fire_ts
		FROM reminder
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY reminder.fire_ts ASC, reminder.id ASC`
	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
		if find.Offset != nil {
			query = fmt.Sprintf("%s OFFSET %d", query, *find.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query reminders")
	}
	defer rows.Close()

	list := make([]*store.Reminder, 0)
	for rows.Next() {
		var r store.Reminder
		if err := rows.Scan(
			&r.ID,
			&r.UID,
			&r.ChatID,
			&r.UserID,
			&r.CreatedTs,
			&r.UpdatedTs,
			&r.Date,
			&r.Time,
			&r.Timezone,
			&r.Text,
			&r.Repeatability,
			&r.Notified,
			&r.FireTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan reminder")
		}
		list = append(list, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) UpdateReminder(ctx context.Context, update *store.UpdateReminder) error {
	set, args := []string{}, []any{}
	if v := update.UpdatedTs; v != nil {
		set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Date; v != nil {
		set, args = append(set, "fire_date = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Time; v != nil {
		set, args = append(set, "fire_time = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Timezone; v != nil {
		set, args = append(set, "timezone = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Text; v != nil {
		set, args = append(set, "text = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Repeatability; v != nil {
		set, args = append(set, "repeatability = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Notified; v != nil {
		set, args = append(set, "notified = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.FireTs; v != nil {
		set, args = append(set, "fire_ts = "+placeholder(len(args)+1)), append(args, *v)
	}
	if len(set) == 0 {
		return nil
	}

	stmt := `UPDATE reminder SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args)+1)
	args = append(args, update.ID)
	result, err := d.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return errors.Wrap(err, "failed to update reminder")
	}
	return checkAffected(result, update.ID)
}

func (d *DB) DeleteReminder(ctx context.Context, delete *store.DeleteReminder) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM reminder WHERE id = `+placeholder(1), delete.ID)
	if err != nil {
		return errors.Wrap(err, "failed to delete reminder")
	}
	return checkAffected(result, delete.ID)
}

func checkAffected(result sql.Result, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get affected rows")
	}
	if n == 0 {
		return errors.Wrapf(store.ErrNotFound, "id %d", id)
	}
	return nil
}
