package repository

import (
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"coachline/internal/models"
)

// OperatorRepository persists the oversight accounts of the supplemented
// admin API, adapted from the teacher's AuthRepository.
type OperatorRepository interface {
	CreateOperator(op *models.Operator) error
	GetOperatorByUsername(username string) (*models.Operator, error)
	CountOperators() (int, error)
}

type operatorRepository struct {
	db  *sqlx.DB
	log *logrus.Logger
}

func NewOperatorRepository(db *sqlx.DB, log *logrus.Logger) OperatorRepository {
	return &operatorRepository{db: db, log: log}
}

func (r *operatorRepository) CreateOperator(op *models.Operator) error {
	query := `INSERT INTO operators (username, password_hash) VALUES ($1, $2) RETURNING id, created_at`
	return r.db.QueryRowx(query, op.Username, op.PasswordHash).StructScan(op)
}

func (r *operatorRepository) GetOperatorByUsername(username string) (*models.Operator, error) {
	var op models.Operator
	query := `SELECT id, username, password_hash, created_at FROM operators WHERE username = $1`
	if err := r.db.Get(&op, query, username); err != nil {
		return nil, err
	}
	return &op, nil
}

func (r *operatorRepository) CountOperators() (int, error) {
	var count int
	if err := r.db.Get(&count, `SELECT COUNT(*) FROM operators`); err != nil {
		return 0, err
	}
	return count, nil
}
