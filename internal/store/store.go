package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ChinmayIngle26/antigravity-pharmacy/pkg"
)

var (
	ErrMedicineNotFound  = errors.New("medicine not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Medicine is the full catalog row.  The inventory endpoint exposes only the
// subset in pkg.InventoryItem; the agent needs the rest for its safety rules.
type Medicine struct {
	ID                   int64
	Name                 string
	Dosage               string
	Stock                int64
	Unit                 string
	Price                float64
	Category             string
	Description          string
	PrescriptionRequired bool
}

// Purchase is the most recent purchase of one medicine by one patient, used
// by the predictive refill scan.
type Purchase struct {
	Patient  string
	Medicine string
	Date     time.Time
}

// Repository wraps database operations for the pharmacy catalog, the patient
// roster and the order history.  A single postgres database backs all three.
type Repository struct {
	DB *sql.DB
}

// NewRepository constructs a new Repository from an existing sql.DB.
// The caller is responsible for managing the DB connection lifecycle.
func NewRepository(db *sql.DB) *Repository { return &Repository{DB: db} }

// ListInventory returns the inventory snapshot in catalog order.
func (r *Repository) ListInventory(ctx context.Context) ([]pkg.InventoryItem, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, name, stock, unit, price FROM medicines ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []pkg.InventoryItem
	for rows.Next() {
		var it pkg.InventoryItem
		if err := rows.Scan(&it.ID, &it.Name, &it.Stock, &it.Unit, &it.Price); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// SearchMedicines returns catalog rows whose name contains the given
// fragment, case-insensitively.  An empty fragment returns the whole
// catalog.
func (r *Repository) SearchMedicines(ctx context.Context, name string) ([]Medicine, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, name, dosage, stock, unit, price, category, description, prescription_required
         FROM medicines
         WHERE name ILIKE '%' || $1 || '%'
         ORDER BY id`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var meds []Medicine
	for rows.Next() {
		var m Medicine
		if err := rows.Scan(&m.ID, &m.Name, &m.Dosage, &m.Stock, &m.Unit, &m.Price,
			&m.Category, &m.Description, &m.PrescriptionRequired); err != nil {
			return nil, err
		}
		meds = append(meds, m)
	}
	return meds, rows.Err()
}

// ListPatients returns the patient roster.
func (r *Repository) ListPatients(ctx context.Context) ([]pkg.Patient, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, name, age, allergies, conditions FROM patients ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var patients []pkg.Patient
	for rows.Next() {
		var p pkg.Patient
		if err := rows.Scan(&p.ID, &p.Name, &p.Age, &p.Allergies, &p.Conditions); err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

// FindPatient resolves a patient by numeric ID or by name fragment.
// Returns (nil, nil) when no patient matches.
func (r *Repository) FindPatient(ctx context.Context, ref string) (*pkg.Patient, error) {
	var row *sql.Row
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		row = r.DB.QueryRowContext(ctx,
			`SELECT id, name, age, allergies, conditions FROM patients WHERE id = $1`, id)
	} else {
		row = r.DB.QueryRowContext(ctx,
			`SELECT id, name, age, allergies, conditions FROM patients
             WHERE name ILIKE '%' || $1 || '%' ORDER BY id LIMIT 1`, ref)
	}
	var p pkg.Patient
	err := row.Scan(&p.ID, &p.Name, &p.Age, &p.Allergies, &p.Conditions)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListHistory returns the full order history, newest first.
func (r *Repository) ListHistory(ctx context.Context) ([]pkg.OrderRecord, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, date_purchased, patient_id, medicine, quantity
         FROM order_history ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []pkg.OrderRecord
	for rows.Next() {
		var rec pkg.OrderRecord
		if err := rows.Scan(&rec.ID, &rec.Date, &rec.Patient, &rec.Medicine, &rec.Qty); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// PatientHistory returns the order history of one patient, newest first.
func (r *Repository) PatientHistory(ctx context.Context, patient string) ([]pkg.OrderRecord, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, date_purchased, patient_id, medicine, quantity
         FROM order_history WHERE patient_id = $1 ORDER BY id DESC`, patient)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []pkg.OrderRecord
	for rows.Next() {
		var rec pkg.OrderRecord
		if err := rows.Scan(&rec.ID, &rec.Date, &rec.Patient, &rec.Medicine, &rec.Qty); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// PlaceOrder deducts stock and records the purchase in one transaction.
// Returns the medicine row as it was before the deduction so the caller can
// report remaining stock; ErrMedicineNotFound and ErrInsufficientStock are
// the expected failure modes.
func (r *Repository) PlaceOrder(ctx context.Context, patient, medicineName string, qty int64) (*Medicine, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var m Medicine
	err = tx.QueryRowContext(ctx,
		`SELECT id, name, dosage, stock, unit, price, category, description, prescription_required
         FROM medicines
         WHERE name ILIKE '%' || $1 || '%'
         ORDER BY id LIMIT 1
         FOR UPDATE`, medicineName).
		Scan(&m.ID, &m.Name, &m.Dosage, &m.Stock, &m.Unit, &m.Price,
			&m.Category, &m.Description, &m.PrescriptionRequired)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMedicineNotFound
	}
	if err != nil {
		return nil, err
	}
	if m.Stock < qty {
		return &m, ErrInsufficientStock
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE medicines SET stock = stock - $1 WHERE id = $2`, qty, m.ID); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO order_history (patient_id, medicine, dosage, quantity, date_purchased)
         VALUES ($1, $2, $3, $4, $5)`,
		patient, m.Name, m.Dosage, qty, time.Now().Format("2006-01-02")); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LatestPurchases returns the most recent purchase date per patient+medicine
// pair.  Dates are stored as ISO strings, so MAX over text is the latest.
func (r *Repository) LatestPurchases(ctx context.Context) ([]Purchase, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT patient_id, medicine, MAX(date_purchased)
         FROM order_history GROUP BY patient_id, medicine`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var purchases []Purchase
	for rows.Next() {
		var p Purchase
		var date string
		if err := rows.Scan(&p.Patient, &p.Medicine, &date); err != nil {
			return nil, err
		}
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, fmt.Errorf("parse purchase date %q: %w", date, err)
		}
		p.Date = parsed
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}
