package schema

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/fekuna/omnipos-product-dal/internal/dal"
	"github.com/jmoiron/sqlx"
)

type productLink struct {
	ID       string         `db:"id"`
	ParentID sql.NullString `db:"parent_id"`
}

type categoryLink struct {
	ProductID  string `db:"product_id"`
	CategoryID string `db:"category_id"`
}

// CategoryTreeIndexer maintains product.category_tree and
// product.category_join_id for every product touched by a write, including
// products linked through product_category rows written from the category side.
//
// A product with own categories joins on its own id and stores its categories
// plus their ancestors as tree. A variant without own categories joins on its
// parent's id and has no tree of its own.
func CategoryTreeIndexer(ctx context.Context, tx *sqlx.Tx, result *dal.WriteResult) error {
	ids := affectedProducts(result)
	if len(ids) == 0 {
		return nil
	}

	var products []productLink
	if err := selectIn(ctx, tx, &products, `SELECT id, parent_id FROM product WHERE id IN (?)`, ids); err != nil {
		return fmt.Errorf("category tree: load products: %w", err)
	}

	var links []categoryLink
	if err := selectIn(ctx, tx, &links, `SELECT product_id, category_id FROM product_category WHERE product_id IN (?)`, ids); err != nil {
		return fmt.Errorf("category tree: load categories: %w", err)
	}
	own := make(map[string][]string, len(links))
	var categories []string
	for _, l := range links {
		own[l.ProductID] = append(own[l.ProductID], l.CategoryID)
		categories = append(categories, l.CategoryID)
	}

	parents, err := categoryParents(ctx, tx, categories)
	if err != nil {
		return fmt.Errorf("category tree: load ancestors: %w", err)
	}

	update := tx.Rebind(`UPDATE product SET category_tree = ?, category_join_id = ? WHERE id = ?`)
	for _, p := range products {
		var tree any
		joinID := p.ID
		if cats := own[p.ID]; len(cats) > 0 {
			data, err := json.Marshal(expandTree(cats, parents))
			if err != nil {
				return fmt.Errorf("category tree: %w", err)
			}
			tree = string(data)
		} else if p.ParentID.Valid {
			joinID = p.ParentID.String
		}
		if _, err := tx.ExecContext(ctx, update, tree, joinID, p.ID); err != nil {
			return fmt.Errorf("category tree: update %s: %w", p.ID, err)
		}
	}
	return nil
}

func affectedProducts(result *dal.WriteResult) []string {
	seen := map[string]bool{}
	var ids []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, id := range result.IDs(Product) {
		add(id)
	}
	if e := result.EventByDefinition(ProductCategory); e != nil {
		for _, payload := range e.Payloads {
			if id, ok := payload["productId"].(string); ok {
				add(id)
			}
		}
	}
	return ids
}

// categoryParents walks up the category tree and returns child -> parent for
// every visited category.
func categoryParents(ctx context.Context, tx *sqlx.Tx, ids []string) (map[string]string, error) {
	parents := map[string]string{}
	visited := map[string]bool{}
	pending := ids
	for len(pending) > 0 {
		var batch []string
		for _, id := range pending {
			if !visited[id] {
				visited[id] = true
				batch = append(batch, id)
			}
		}
		if len(batch) == 0 {
			break
		}
		var rows []productLink
		if err := selectIn(ctx, tx, &rows, `SELECT id, parent_id FROM category WHERE id IN (?)`, batch); err != nil {
			return nil, err
		}
		pending = pending[:0:0]
		for _, r := range rows {
			if r.ParentID.Valid {
				parents[r.ID] = r.ParentID.String
				pending = append(pending, r.ParentID.String)
			}
		}
	}
	return parents, nil
}

// expandTree returns the categories with all their ancestors, ancestors first.
func expandTree(categories []string, parents map[string]string) []string {
	seen := map[string]bool{}
	var tree []string
	for _, id := range categories {
		var chain []string
		for cur := id; cur != "" && !seen[cur]; cur = parents[cur] {
			seen[cur] = true
			chain = append(chain, cur)
		}
		for i := len(chain) - 1; i >= 0; i-- {
			tree = append(tree, chain[i])
		}
	}
	return tree
}

func selectIn(ctx context.Context, tx *sqlx.Tx, dest any, query string, ids []string) error {
	query, args, err := sqlx.In(query, ids)
	if err != nil {
		return err
	}
	return tx.SelectContext(ctx, dest, tx.Rebind(query), args...)
}
