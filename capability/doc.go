// Package capability holds the table of host-side functions a running
// script may call back into through the bridge.
//
// A [Registry] maps fixed capability names to typed handlers. The same table
// drives both sides of the bridge: the environment builder renders one
// Python stub per [Def], and the dispatcher resolves incoming requests by
// name against it, so the two can never drift apart.
//
// # Standard capabilities
//
// [Standard] builds the fixed surface used by generated analysis scripts:
//
//   - report_step(message), report_progress(message)
//   - gen_sql(query_text, table_ref) -> sql
//   - exec_sql(sql) -> rows
//   - vis_textbox, vis_textblock, vis_single_bar, vis_clustered_bar,
//     vis_pie_chart, vis_table
//
// The collaborators behind them ([Reporter], [QueryGenerator], [QueryRunner],
// [VisualizationSink]) are supplied by the caller.
//
// # Discovery
//
// [Registry.Tools] describes every capability as a toolfoundation model.Tool
// and [NewCatalog] indexes them with tooldiscovery so hosts can search and
// document the surface a script is allowed to use.
package capability
