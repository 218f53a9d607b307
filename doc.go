// Package casauth 让 web 应用通过 CAS 服务器完成单点登录。
//
// 代码分布在下面几个包中
//
//	cas       向 CAS 服务器验证 service ticket, 解析 serviceValidate 响应和 SAML 注销请求
//	registry  ticket 与本地会话之间的双向映射
//	resolver  将 CAS 用户名映射为应用内部的 resource id
//	session   本地会话, 带签名的 cookie, 过期清理, 可选的 SQLite 持久化
//	filter    认证过滤器, 处理 CAS 的注销通知, 同时监听会话的生命周期
//
// 过滤器对每个请求按下面的顺序处理
//
//  1. 请求中有 logoutRequest 参数时, 这是 CAS 服务器发来的注销通知, 从中取出
//     ticket, 注销这个 ticket 对应的会话, 然后返回 200, 不再继续。注销通知与
//     当前连接的 cookie 和会话无关。
//  2. 请求中有 ticket 参数时, 将 ticket 和去掉 ticket 后的当前 url (service)
//     发给 CAS 服务器验证。验证成功并且用户名能映射为 resource id 时, 在会话中
//     记下 ticket 和 resource id, 然后重定向到 service; 否则重定向到失败页面,
//     会话保持原来的身份。
//  3. 其它请求直接交给下一个 handler, 下游通过 filter.CurrentResourceID 取得
//     当前用户, 未登录时为缺省的 resource id。
//
// 你可能会有下列疑问
//
// 1. 同一个 ticket 被第二个会话提交了怎么办?
// 答: 拒绝。ticket 只能绑定到一个会话, 第二个会话被重定向到失败页面, 第一个会话不受影响。
//
// 2. 会话过期或用户自己退出后, CAS 再发来注销通知怎么办?
// 答: 会话销毁时 ticket 的映射已经被删除, 注销通知找不到 ticket, 直接忽略。
//
// 3. 应用重启后会话还在吗?
// 答: 使用 session.SQLiteStore 时会话会被保存, 重启后恢复, 其中的 ticket 会重新
// 登记, 所以 CAS 的注销通知仍然有效。cookie 的签名密钥需要固定, 否则旧的 cookie 无法通过验证。
package casauth
