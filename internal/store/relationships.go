package store

import (
	"fmt"

	"github.com/jward/arbor/internal/index"
)

// SaveRelationships replaces the stored relationship index with facts.
// Facts are stored in the given order so that loading them replays the
// same insertion order.
func (s *Store) SaveRelationships(facts []index.Fact) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		"DELETE FROM relationships",
		"DELETE FROM elements",
	} {
		if _, err := tx.Exec(q); err != nil {
			return fmt.Errorf("clear relationships: %w", err)
		}
	}

	elemStmt, err := tx.Prepare(
		"INSERT OR IGNORE INTO elements (key, name, kind, source, name_offset) VALUES (?, ?, ?, ?, ?)",
	)
	if err != nil {
		return fmt.Errorf("prepare insert element: %w", err)
	}
	defer elemStmt.Close()
	relStmt, err := tx.Prepare(
		`INSERT INTO relationships (element_key, relationship, site_key, start_offset, length, qualified, resolved)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare insert relationship: %w", err)
	}
	defer relStmt.Close()

	for _, f := range facts {
		if f.Element == nil || f.Relationship == nil || f.Location.Element == nil {
			continue
		}
		for _, e := range []*index.Element{f.Element, f.Location.Element} {
			if _, err := elemStmt.Exec(e.Key, e.Name, e.Kind, e.Source, e.Offset); err != nil {
				return fmt.Errorf("insert element %s: %w", e.Key, err)
			}
		}
		l := f.Location
		if _, err := relStmt.Exec(
			f.Element.Key, f.Relationship.String(), l.Element.Key, l.Offset, l.Length, l.Qualified, l.Resolved,
		); err != nil {
			return fmt.Errorf("insert relationship: %w", err)
		}
	}
	return tx.Commit()
}

// LoadRelationships returns the stored facts in the order they were saved.
// Elements shared between facts are returned as the same pointer.
func (s *Store) LoadRelationships() ([]index.Fact, error) {
	elements, err := s.loadElements()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(
		`SELECT element_key, relationship, site_key, start_offset, length, qualified, resolved
		 FROM relationships ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("load relationships: %w", err)
	}
	defer rows.Close()

	var facts []index.Fact
	for rows.Next() {
		var (
			elemKey, rel, siteKey string
			l                     index.Location
		)
		if err := rows.Scan(&elemKey, &rel, &siteKey, &l.Offset, &l.Length, &l.Qualified, &l.Resolved); err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		l.Element = elements[siteKey]
		facts = append(facts, index.Fact{
			Element:      elements[elemKey],
			Relationship: index.GetRelationship(rel),
			Location:     l,
		})
	}
	return facts, rows.Err()
}

func (s *Store) loadElements() (map[string]*index.Element, error) {
	rows, err := s.db.Query("SELECT key, name, kind, source, name_offset FROM elements")
	if err != nil {
		return nil, fmt.Errorf("load elements: %w", err)
	}
	defer rows.Close()
	elements := make(map[string]*index.Element)
	for rows.Next() {
		e := &index.Element{}
		if err := rows.Scan(&e.Key, &e.Name, &e.Kind, &e.Source, &e.Offset); err != nil {
			return nil, fmt.Errorf("scan element: %w", err)
		}
		elements[e.Key] = e
	}
	return elements, rows.Err()
}

// ReferencingSources returns the files holding a site related to any
// element declared in source, sorted.
func (s *Store) ReferencingSources(source string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT site.source
		 FROM relationships r
		 JOIN elements e ON e.key = r.element_key
		 JOIN elements site ON site.key = r.site_key
		 WHERE e.source = ? AND site.source != ?
		 ORDER BY site.source`,
		source, source,
	)
	if err != nil {
		return nil, fmt.Errorf("referencing sources: %w", err)
	}
	defer rows.Close()
	var sources []string
	for rows.Next() {
		var src string
		if err := rows.Scan(&src); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}
