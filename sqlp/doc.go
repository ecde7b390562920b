// sqlp is a powerputty package to provide extensions to sql.
//   - Consistent and minimal "single path" APIs.
//   - Contextual transactions to let you write tx agnostic methods cleanly.
//   - Dialects, just enough to pick placeholders and lock hints.
//   - Audit field stamping for entities, with the acting user carried in context.
//   - Bare minimum, easy to understand query builders (glorified string builders, no extra DSL),
//     re-exported from queryp.
package sqlp
