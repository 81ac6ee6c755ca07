// internal/bank/registry.go

package bank

// Registry 為記憶體中的帳戶集合，依識別碼（PESEL / NIP）查找。
//
// Registry 本身不加鎖、也不檢查重複：
//   - 併發存取由上層（HTTP 層）以單一互斥鎖序列化。
//   - 建立前的重複檢查由上層以 Exists 完成。
type Registry struct {
	accounts []Account
}

// NewRegistry 建立空白帳戶集合。
func NewRegistry() *Registry {
	return &Registry{}
}

// Add 將帳戶追加至集合尾端。
func (r *Registry) Add(a Account) {
	r.accounts = append(r.accounts, a)
}

// Get 依識別碼線性搜尋，回傳第一個符合者。
func (r *Registry) Get(key string) (Account, bool) {
	for _, a := range r.accounts {
		if a.Key() == key {
			return a, true
		}
	}
	return nil, false
}

// Personal 依 PESEL 取得個人帳戶；不存在或種類不符時回傳 false。
func (r *Registry) Personal(pesel string) (*PersonalAccount, bool) {
	a, ok := r.Get(pesel)
	if !ok {
		return nil, false
	}
	p, ok := a.(*PersonalAccount)
	return p, ok
}

// Company 依 NIP 取得企業帳戶。
func (r *Registry) Company(nip string) (*CompanyAccount, bool) {
	a, ok := r.Get(nip)
	if !ok {
		return nil, false
	}
	c, ok := a.(*CompanyAccount)
	return c, ok
}

func (r *Registry) Exists(key string) bool {
	_, ok := r.Get(key)
	return ok
}

// Delete 移除第一個符合的帳戶，回傳是否有移除。
func (r *Registry) Delete(key string) bool {
	for i, a := range r.accounts {
		if a.Key() == key {
			r.accounts = append(r.accounts[:i], r.accounts[i+1:]...)
			return true
		}
	}
	return false
}

// All 依加入順序回傳所有帳戶（新切片，元素為同一組帳戶指標）。
func (r *Registry) All() []Account {
	out := make([]Account, len(r.accounts))
	copy(out, r.accounts)
	return out
}

func (r *Registry) Count() int {
	return len(r.accounts)
}

// Replace 清空集合後依序放入 accounts（用於從資料庫載入）。
func (r *Registry) Replace(accounts []Account) {
	r.accounts = make([]Account, 0, len(accounts))
	r.accounts = append(r.accounts, accounts...)
}
