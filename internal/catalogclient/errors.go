package catalogclient

import "errors"

var (
	// ErrCatalogUnavailable is returned when the Catalog service cannot be
	// reached or responds with a transport-level failure (§5, §7).
	ErrCatalogUnavailable = errors.New("catalogclient: сервис каталога недоступен")
	// ErrPriceNotFound is returned when the catalog response omits a
	// requested product identifier.
	ErrPriceNotFound = errors.New("catalogclient: цена товара не найдена")
	// ErrDetailsNotFound is returned when a product does not exist in the catalog.
	ErrDetailsNotFound = errors.New("catalogclient: товар не найден")
)
