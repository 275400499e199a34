package sales

import (
	"time"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
)

const listDateLayout = "2006-01-02"

// pageFilter fills in list defaults: first page, 20 rows, newest first
func pageFilter(page, pageSize int, orderBy, orderDir string) shared.Filter {
	f := shared.DefaultFilter()
	if page > 0 {
		f.Page = page
	}
	if pageSize > 0 {
		f.PageSize = pageSize
	}
	f.OrderBy = orderBy
	if orderDir != "" {
		f.OrderDir = orderDir
	}
	return f
}

func parseCustomerFilter(raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, shared.NewValidationError("customer_id", "customer_id must be a UUID")
	}
	return &id, nil
}

// parseDateRange reads an inclusive YYYY-MM-DD range
func parseDateRange(from, to string) (*time.Time, *time.Time, error) {
	parse := func(field, raw string) (*time.Time, error) {
		if raw == "" {
			return nil, nil
		}
		d, err := time.ParseInLocation(listDateLayout, raw, time.UTC)
		if err != nil {
			return nil, shared.NewValidationError(field, field+" must be a YYYY-MM-DD date")
		}
		return &d, nil
	}
	start, err := parse("from", from)
	if err != nil {
		return nil, nil, err
	}
	end, err := parse("to", to)
	if err != nil {
		return nil, nil, err
	}
	if start != nil && end != nil && end.Before(*start) {
		return nil, nil, shared.NewValidationError("to", "to must not be before from")
	}
	return start, end, nil
}
